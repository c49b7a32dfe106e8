package tools

// Tool input schemas. Field descriptions reach the model through the
// generated JSON schema, so they are written for the model, not for
// developers.

// WeatherInput asks for conditions at a coordinate.
type WeatherInput struct {
	Latitude  float64 `json:"latitude" jsonschema_description:"Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema_description:"Longitude of the location"`
}

// CreateDocumentInput starts a new document.
type CreateDocumentInput struct {
	Title string `json:"title" jsonschema_description:"Title of the document to create"`
}

// UpdateDocumentInput revises an existing document.
type UpdateDocumentInput struct {
	ID          string `json:"id" jsonschema_description:"ID of the document to update"`
	Description string `json:"description" jsonschema_description:"Description of the changes to make"`
}

// SuggestionsInput requests writing suggestions for a document.
type SuggestionsInput struct {
	DocumentID string `json:"documentId" jsonschema_description:"ID of the document to suggest improvements for"`
}

// DocumentOutput is returned to the model by the document tools.
type DocumentOutput struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SuggestionsOutput is returned to the model by requestSuggestions.
type SuggestionsOutput struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
