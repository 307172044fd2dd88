package waiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-waiver/internal/testdoc"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/delivery"
	werrors "github.com/a3tai/mcp-pdf-waiver/internal/waiver/errors"
	"github.com/a3tai/mcp-pdf-waiver/internal/waiver/schema"
)

type failingSender struct{}

func (failingSender) Send(context.Context, delivery.Message) error {
	return werrors.Wrap(werrors.ErrorTypeDelivery, "failed to send mail", errors.New("connection refused"))
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.Schema == nil {
		opts.Schema = defaultSchema(t)
	}
	if opts.Template == nil {
		opts.Template = testdoc.Blank(8)
	}
	if opts.OutputDirectory == "" {
		opts.OutputDirectory = filepath.Join(t.TempDir(), "out")
	}
	svc, err := NewService(opts)
	require.NoError(t, err)
	return svc
}

func startFilled(t *testing.T, svc *Service) string {
	t.Helper()
	view := svc.StartSession()
	sess, err := svc.Session(view.SessionID)
	require.NoError(t, err)
	fillRequired(t, sess)
	return view.SessionID
}

func TestNewService_TemplateChecks(t *testing.T) {
	sch := defaultSchema(t)

	_, err := NewService(Options{Schema: sch, Template: testdoc.Blank(7), OutputDirectory: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, werrors.ErrMissingPage))

	_, err = NewService(Options{Schema: sch, Template: []byte("garbage"), OutputDirectory: t.TempDir()})
	assert.True(t, errors.Is(err, werrors.ErrParse))

	_, err = NewService(Options{Schema: sch, Template: testdoc.Blank(8)})
	assert.Error(t, err, "output directory is required")

	_, err = NewService(Options{Template: testdoc.Blank(8), OutputDirectory: t.TempDir()})
	assert.True(t, errors.Is(err, werrors.ErrConfiguration))
}

func TestService_DescribeSchema(t *testing.T) {
	svc := newTestService(t, Options{})
	desc := svc.DescribeSchema()

	assert.Equal(t, "Release of Liability Waiver", desc.Title)
	assert.Equal(t, 8, desc.Pages)
	require.NotEmpty(t, desc.Fields)
	assert.Equal(t, "full_name", desc.Fields[0].ID)
	assert.Equal(t, schema.PlacementShared, desc.Fields[0].Placement)

	byID := make(map[string]FieldDescription)
	for _, f := range desc.Fields {
		byID[f.ID] = f
	}
	assert.Equal(t, "{full_name}", byID["signature"].Default)
	assert.True(t, byID["signature"].Signature)
	assert.False(t, byID["signature"].Visible)
	assert.Equal(t, "{today}", byID["date"].Default)
	assert.Equal(t, schema.InputSelect, byID["minor_relation_to_user"].Input)
	assert.Equal(t, "minor", byID["minor_relation_to_user"].Collection)

	require.Len(t, desc.Collections, 1)
	assert.Equal(t, CollectionDescription{
		ID:       "minor",
		Title:    "Minors",
		Fields:   []string{"minor_full_name", "minor_birthday", "minor_relation_to_user"},
		MinCount: 0,
		MaxCount: 4,
	}, desc.Collections[0])
}

func TestService_SessionLifecycle(t *testing.T) {
	now := time.Date(2024, time.March, 9, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, Options{Clock: func() time.Time { return now }, SessionTTL: time.Hour})

	view := svc.StartSession()
	assert.Equal(t, 1, svc.ActiveSessions())

	res, err := svc.UpdateField(UpdateFieldRequest{SessionID: view.SessionID, FieldID: "phone_number", Value: "9705551234"})
	require.NoError(t, err)
	assert.Equal(t, "(970) 555-1234", res.Value)

	added, err := svc.AddInstance(InstanceRequest{SessionID: view.SessionID, Target: "minor"})
	require.NoError(t, err)
	assert.Equal(t, 1, added.Count)
	assert.NotEmpty(t, added.InstanceID)

	removed, err := svc.RemoveInstance(InstanceRequest{SessionID: view.SessionID, Target: "minor", Index: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, removed.Count)

	_, err = svc.RemoveInstance(InstanceRequest{SessionID: view.SessionID, Target: "full_name", Index: 0})
	assert.True(t, errors.Is(err, werrors.ErrCapacityExceeded))

	reset, err := svc.ResetSession(view.SessionID)
	require.NoError(t, err)
	for _, f := range reset.Fields {
		for _, v := range f.Values {
			assert.Empty(t, v, f.ID)
		}
	}

	require.NoError(t, svc.EndSession(view.SessionID))
	_, err = svc.SessionView(view.SessionID)
	assert.True(t, errors.Is(err, werrors.ErrNotFound))
	assert.True(t, errors.Is(svc.EndSession(view.SessionID), werrors.ErrNotFound))
}

func TestService_SessionExpiry(t *testing.T) {
	now := time.Date(2024, time.March, 9, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, Options{Clock: func() time.Time { return now }, SessionTTL: time.Hour})

	stale := svc.StartSession().SessionID
	now = now.Add(30 * time.Minute)
	_, err := svc.Session(stale)
	require.NoError(t, err, "access refreshes the session")

	now = now.Add(61 * time.Minute)
	fresh := svc.StartSession().SessionID
	assert.Equal(t, 1, svc.ActiveSessions(), "stale session swept")

	_, err = svc.Session(stale)
	assert.True(t, errors.Is(err, werrors.ErrNotFound))
	_, err = svc.Session(fresh)
	assert.NoError(t, err)
}

func TestService_SubmitIncomplete(t *testing.T) {
	svc := newTestService(t, Options{})
	id := svc.StartSession().SessionID

	_, err := svc.Submit(context.Background(), SubmitRequest{SessionID: id, OutputName: "jane"})
	require.Error(t, err)
	assert.Equal(t, "please complete all required fields", werrors.UserMessage(err))

	entries, _ := os.ReadDir(svc.ServerInfo().OutputDirectory)
	assert.Empty(t, entries)
}

func TestService_SubmitRejectsBadOutputName(t *testing.T) {
	svc := newTestService(t, Options{})
	id := startFilled(t, svc)

	_, err := svc.Submit(context.Background(), SubmitRequest{SessionID: id, OutputName: "../escape"})
	assert.Equal(t, werrors.ErrorTypeInvalidInput, werrors.TypeOf(err))
}

func TestService_SubmitWithoutDelivery(t *testing.T) {
	svc := newTestService(t, Options{})
	id := startFilled(t, svc)

	_, err := svc.Submit(context.Background(), SubmitRequest{SessionID: id, Recipients: []string{"jane@example.com"}})
	assert.True(t, errors.Is(err, werrors.ErrDelivery))
}

func TestService_SubmitWritesAndDelivers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pdfcpu round trip in short mode")
	}

	outbox := make(chan delivery.Outgoing, 1)
	sender := delivery.NewCapturingSender(delivery.Config{From: "waivers@example.com", Subject: "Your waiver"}, outbox)
	svc := newTestService(t, Options{Sender: sender})
	id := startFilled(t, svc)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		SessionID:  id,
		OutputName: "jane-doe",
		Recipients: []string{"jane@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "jane-doe.pdf", filepath.Base(res.Path))
	written, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, written)
	assert.Equal(t, len(written), res.Size)
	assert.Equal(t, 32, res.Draws)
	assert.Equal(t, []string{"jane@example.com"}, res.Delivered)

	mail := <-outbox
	assert.Equal(t, "jane-doe.pdf", mail.Filename)
	assert.Equal(t, written, mail.Attachment)
	assert.Contains(t, mail.Body, "Jane Doe")
}

func TestService_DeliveryFailureKeepsDocument(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pdfcpu round trip in short mode")
	}

	svc := newTestService(t, Options{Sender: failingSender{}})
	id := startFilled(t, svc)

	res, err := svc.Submit(context.Background(), SubmitRequest{
		SessionID:  id,
		OutputName: "jane",
		Recipients: []string{"jane@example.com"},
	})
	require.Error(t, err)
	assert.Equal(t, "document was generated but could not be delivered", werrors.UserMessage(err))
	require.NotNil(t, res)
	assert.FileExists(t, res.Path)
	assert.Empty(t, res.Delivered)
}

func TestService_ServerInfo(t *testing.T) {
	svc := newTestService(t, Options{})
	svc.StartSession()

	info := svc.ServerInfo()
	assert.Equal(t, 1, info.ActiveSessions)
	assert.False(t, info.Delivery)
	assert.Equal(t, 8, info.Template.Pages)
	assert.Same(t, svc.InspectTemplate(), info.Template)
}
