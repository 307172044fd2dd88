package descriptions

// Tool descriptions with practical examples and workflows

const (
	// Schema and template tools
	WaiverDescribeSchemaDescription = `Describe every field and collection of the loaded waiver form.

**When to use:** Before starting a session, to learn which fields must be asked for, which are filled automatically and how many minors can be added.

**Why it's useful:** Reports labels, input kinds (text, date, phone, select), dropdown options, required flags, instance bounds and the page coordinates each field is drawn at.

**Examples:**
• Plan the conversation: "Which questions do I need to ask before the waiver can be signed?"
• Check options: "What relations to the signer are allowed for a minor?"

**Best practices:** Generated fields (signature, date) are never asked for. Their defaults are shown as {field} references and {today}.`

	WaiverTemplateInfoDescription = `Get server information and the layout of the template PDF.

**When to use:** To confirm the template loaded correctly, see its page count and page sizes, and find where generated documents are written.

**Why it's useful:** Shows whether e-mail delivery is configured and how many sessions are active.

**Examples:**
• Health check: "Is the waiver server ready and can it e-mail documents?"`

	// Session tools
	WaiverStartSessionDescription = `Start a new waiver form session.

**When to use:** Once per signer. Every field starts with its minimum number of empty instances.

**Examples:**
• "Start a waiver for a new guest"

**Common workflows:**
1. Start session → update fields → submit
2. Start session → add minor → fill minor fields → submit

**Best practices:** Keep the returned session_id. Sessions expire after a period of inactivity.`

	WaiverSessionStateDescription = `Show the current values and instances of a session.

**When to use:** To review what has been entered, or to find the index of an instance before removing it.`

	WaiverUpdateFieldDescription = `Set the value of one instance of a field.

**When to use:** For every answer the signer gives. Values are normalised as they are stored: phone numbers become (XXX) XXX-XXXX and dates become M/D/YYYY.

**Examples:**
• "Set full_name to Jane Doe"
• "Set minor_full_name at index 1 to Sam Doe"

**Best practices:** The index is 0 for fields with a single instance. Select fields only accept one of their options.`

	WaiverAddInstanceDescription = `Add an instance to a multi-instance field or to a collection.

**When to use:** To add another minor. Adding to a collection adds one instance to each of its member fields.

**Examples:**
• "Add a minor" (target: minor)

**Best practices:** Fails when the maximum count is reached.`

	WaiverRemoveInstanceDescription = `Remove an instance from a multi-instance field or from a collection.

**When to use:** To remove a minor that was added by mistake. Later instances shift down by one.

**Best practices:** Fails when the minimum count would be violated.`

	WaiverSubmitDescription = `Generate the signed waiver PDF for a session.

**When to use:** After every required field has a value. Missing fields are reported by id and nothing is generated.

**Why it's useful:** Draws every value and every generated field (signature, date) onto the template at the configured coordinates, writes the document to the output directory and optionally e-mails it.

**Examples:**
• "Submit the waiver as jane-doe and e-mail it to jane@example.com"

**Best practices:** Use a plain file name for output_name. Recipients are comma separated. A delivery failure still leaves the written document in place.`

	WaiverEndSessionDescription = `Discard a session and its values.

**When to use:** After submission, or when the signer abandons the form.`
)
