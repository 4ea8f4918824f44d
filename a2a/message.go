package a2a

import "encoding/json"

// Role identifies who authored a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part is one of Text, File or Data. The three are mutually exclusive and
// disambiguated structurally: exactly one of Text/File/Data should be
// non-nil on any well-formed Part. There is no discriminator field on the
// wire — callers decide the variant by which field is present, per spec.
type Part struct {
	Text *TextPart `json:"text,omitempty"`
	File *FilePart `json:"file,omitempty"`
	Data *DataPart `json:"data,omitempty"`
}

// TextPart is plain text plus optional metadata. Because Part inlines its
// variants rather than tagging them, TextPart's own fields are flattened
// onto Part at marshal time; see MarshalJSON/UnmarshalJSON below.
type TextPart struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// FilePart carries either inline bytes (base64) or a URI, never both.
type FilePart struct {
	Name     string                 `json:"name,omitempty"`
	MimeType string                 `json:"mimeType,omitempty"`
	Bytes    string                 `json:"bytes,omitempty"` // base64, mutually exclusive with URI
	URI      string                 `json:"uri,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DataPart carries arbitrary structured JSON.
type DataPart struct {
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// partWire is the on-the-wire shape: a flat object whose fields are the
// union of TextPart/FilePart/DataPart fields, with "kind" absent. We infer
// the variant from which of text/bytes/uri/data is present.
type partWire struct {
	Text     *string                `json:"text,omitempty"`
	Name     string                 `json:"name,omitempty"`
	MimeType string                 `json:"mimeType,omitempty"`
	Bytes    string                 `json:"bytes,omitempty"`
	URI      string                 `json:"uri,omitempty"`
	Data     json.RawMessage        `json:"data,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON flattens whichever variant is set into a single wire object.
func (p Part) MarshalJSON() ([]byte, error) {
	var w partWire
	switch {
	case p.Text != nil:
		w.Text = &p.Text.Text
		w.Metadata = p.Text.Metadata
	case p.File != nil:
		w.Name = p.File.Name
		w.MimeType = p.File.MimeType
		w.Bytes = p.File.Bytes
		w.URI = p.File.URI
		w.Metadata = p.File.Metadata
	case p.Data != nil:
		w.Data = p.Data.Data
		w.Metadata = p.Data.Metadata
	}
	return json.Marshal(w)
}

// UnmarshalJSON infers the Part variant from which fields are present:
// "text" implies TextPart, "data" implies DataPart, anything carrying
// "bytes" or "uri" implies FilePart.
func (p *Part) UnmarshalJSON(raw []byte) error {
	var w partWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}

	switch {
	case w.Text != nil:
		p.Text = &TextPart{Text: *w.Text, Metadata: w.Metadata}
	case len(w.Data) > 0:
		p.Data = &DataPart{Data: w.Data, Metadata: w.Metadata}
	case w.Bytes != "" || w.URI != "" || w.Name != "" || w.MimeType != "":
		p.File = &FilePart{Name: w.Name, MimeType: w.MimeType, Bytes: w.Bytes, URI: w.URI, Metadata: w.Metadata}
	default:
		// Empty part; leave all variants nil.
	}
	return nil
}

// CreateTextPart builds a Part wrapping plain text.
func CreateTextPart(text string, metadata map[string]interface{}) Part {
	return Part{Text: &TextPart{Text: text, Metadata: metadata}}
}

// CreateDataPart builds a Part wrapping arbitrary JSON data.
func CreateDataPart(data json.RawMessage, metadata map[string]interface{}) Part {
	return Part{Data: &DataPart{Data: data, Metadata: metadata}}
}

// CreateFileURIPart builds a Part referencing a file by URI.
func CreateFileURIPart(uri, name, mimeType string, metadata map[string]interface{}) Part {
	return Part{File: &FilePart{URI: uri, Name: name, MimeType: mimeType, Metadata: metadata}}
}

// CreateFileBytesPart builds a Part carrying inline base64 file bytes.
func CreateFileBytesPart(b64 string, name, mimeType string, metadata map[string]interface{}) Part {
	return Part{File: &FilePart{Bytes: b64, Name: name, MimeType: mimeType, Metadata: metadata}}
}

// Message is the unit of conversation exchanged between agents.
type Message struct {
	Role      Role                   `json:"role"`
	Parts     []Part                 `json:"parts"`
	MessageId *MessageId             `json:"messageId,omitempty"`
	TaskId    *TaskId                `json:"taskId,omitempty"`
	ContextId *ContextId             `json:"contextId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewMessage stamps a fresh messageId.
func NewMessage(role Role, parts []Part) Message {
	id := NewMessageId()
	return Message{Role: role, Parts: parts, MessageId: &id}
}

// NewUserMessage builds a fresh RoleUser message.
func NewUserMessage(parts []Part) Message {
	return NewMessage(RoleUser, parts)
}

// NewAgentMessage builds a fresh RoleAgent message.
func NewAgentMessage(parts []Part) Message {
	return NewMessage(RoleAgent, parts)
}

// ExtensionValue reads typed extension data stored in metadata under the
// given extension URI, JSON-decoding it into out.
func (m Message) ExtensionValue(extensionURI string, out interface{}) (bool, error) {
	if m.Metadata == nil {
		return false, nil
	}
	raw, ok := m.Metadata[extensionURI]
	if !ok {
		return false, nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

// WithExtensionValue returns a copy of m with extension data set under the
// given extension URI key in metadata.
func (m Message) WithExtensionValue(extensionURI string, value interface{}) Message {
	out := m
	out.Metadata = cloneMetadata(m.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]interface{}{}
	}
	out.Metadata[extensionURI] = value
	return out
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
