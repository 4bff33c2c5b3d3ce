package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	PDFFormLoadDescription = `Load a fillable PDF form so its fields can be read and edited.

**When to use:** Start of every form filling session. Loading replaces any document that was loaded before.

**Examples:**
• Open an application: "Load applications/visa.pdf so I can fill it in"
• Inspect a template: "Load templates/w9.pdf and tell me which fields it has"

**Common workflows:**
1. Fill a form: pdf_form_load → pdf_form_fields → pdf_form_set_field (repeat) → pdf_form_export
2. Review a form: pdf_form_load → pdf_form_page_text → pdf_form_page next → pdf_form_page_text

**Best practices:** Paths are resolved inside the configured directory. Unsupported fields such as signatures are listed as warnings and left untouched.`

	PDFFormFieldsDescription = `List the form fields of the loaded document with their kind, current value and options.

**When to use:** Before setting values, to learn exact field names and the allowed options of radio groups and dropdowns.

**Examples:**
• "Which fields in the loaded form are still empty?"
• "What options does the Country dropdown offer?"

**Best practices:** Use the fully qualified names exactly as listed. Read-only fields cannot be changed.`

	PDFFormSetFieldDescription = `Set the value of one form field in the loaded document.

**When to use:** Filling in the form. Each call applies one edit and re-reads the document, so the next pdf_form_fields shows the new value.

**Examples:**
• Text: name "Applicant.Name", value "Alice Smith"
• Checkbox: name "Agree", value true
• Radio group or dropdown: name "Color", value "Green"

**Best practices:** A rejected edit leaves the document unchanged and reports why, for example an unknown option or a text longer than the field allows.`

	PDFFormPageDescription = `Move the current page of the loaded document.

**When to use:** Reading a multi-page form page by page. Page numbers are clamped to the document, so moving past the last page stays on it.

**Examples:**
• "Go to the next page"
• "Jump to page 3"`

	PDFFormPageTextDescription = `Extract the text of the current page.

**When to use:** Reading the printed labels and instructions that surround the fields on a page.

**Common workflows:**
1. Understand a field: pdf_form_page_text → match label to field name → pdf_form_set_field`

	PDFFormExportDescription = `Write the filled form to a PDF file.

**When to use:** After all edits are applied. The exported file opens in any PDF reader with the entered values.

**Examples:**
• "Save the filled form as out/visa-filled.pdf"

**Best practices:** The destination must be a .pdf path inside the configured directory. Missing parent directories are created.`

	PDFServerInfoDescription = `Get server information, the loaded document and available tools.

**When to use:** Checking which document is loaded, on which page, and how many fields it has.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_form_load":      PDFFormLoadDescription,
	"pdf_form_fields":    PDFFormFieldsDescription,
	"pdf_form_set_field": PDFFormSetFieldDescription,
	"pdf_form_page":      PDFFormPageDescription,
	"pdf_form_page_text": PDFFormPageTextDescription,
	"pdf_form_export":    PDFFormExportDescription,
	"pdf_server_info":    PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the sorted names of all described tools
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
