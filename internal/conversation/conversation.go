// Package conversation holds the provider-neutral conversation value types:
// conversation, message, role, and image/document attachments.
// These are value types with no business logic beyond construction helpers;
// adapters translate them into vendor wire shapes.
package conversation

import (
	"encoding/base64"
	"fmt"

	"github.com/llmgate/llmgate/internal/errs"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ImageFormat is a closed set of accepted raster image encodings.
type ImageFormat string

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
	ImageGIF  ImageFormat = "gif"
	ImageWEBP ImageFormat = "webp"
)

// DocumentFormat is a closed set of accepted document encodings.
type DocumentFormat string

const (
	DocPDF  DocumentFormat = "pdf"
	DocCSV  DocumentFormat = "csv"
	DocDOC  DocumentFormat = "doc"
	DocDOCX DocumentFormat = "docx"
	DocXLS  DocumentFormat = "xls"
	DocXLSX DocumentFormat = "xlsx"
	DocHTML DocumentFormat = "html"
	DocTXT  DocumentFormat = "txt"
	DocMD   DocumentFormat = "md"
)

// Vendor-side limits enforced at conversion time.
const (
	MaxImagesPerMessage = 20
	MaxImageBytes       = int(3.75 * 1024 * 1024)
	MaxImageDimensionPx = 8000
	MaxDocumentsPerMsg  = 5
	MaxDocumentBytes    = int(4.5 * 1024 * 1024)
)

// Image is a raster attachment. Width/Height/EXIF are optional metadata the
// caller may supply; adapters don't derive them from the raw bytes.
type Image struct {
	Data   []byte
	Format ImageFormat
	Width  int
	Height int
	EXIF   map[string]string
}

// Base64 returns the image data as a base64 string, for adapters that embed
// attachments as data URIs.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Document is a file attachment carrying raw bytes plus identifying
// metadata.
type Document struct {
	Data   []byte
	Format DocumentFormat
	Name   string
}

// Base64 returns the document data as a base64 string.
func (d Document) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Data)
}

// Message is one turn in a conversation. Attachments are only permitted on
// user-role messages per vendor contract; Validate enforces this along with
// the per-message attachment limits.
type Message struct {
	Role      Role
	Text      string
	Images    []Image
	Documents []Document
}

// Validate enforces the attachment constraints. It does not
// make any network call; it is pure structural validation run at
// conversion time by adapters (or ahead of dispatch).
func (m Message) Validate() error {
	hasAttachments := len(m.Images) > 0 || len(m.Documents) > 0
	if hasAttachments && m.Role != RoleUser {
		return errs.New(errs.Conversion, "attachments are only permitted on user-role messages, got role %q", m.Role)
	}
	if len(m.Images) > MaxImagesPerMessage {
		return errs.New(errs.Conversion, "message carries %d images, exceeds vendor limit of %d", len(m.Images), MaxImagesPerMessage)
	}
	for i, img := range m.Images {
		if len(img.Data) > MaxImageBytes {
			return errs.New(errs.Conversion, "image %d is %d bytes, exceeds vendor limit of %d", i, len(img.Data), MaxImageBytes)
		}
		if img.Width > MaxImageDimensionPx || img.Height > MaxImageDimensionPx {
			return errs.New(errs.Conversion, "image %d is %dx%d, exceeds vendor limit of %dx%d", i, img.Width, img.Height, MaxImageDimensionPx, MaxImageDimensionPx)
		}
	}
	if len(m.Documents) > MaxDocumentsPerMsg {
		return errs.New(errs.Conversion, "message carries %d documents, exceeds vendor limit of %d", len(m.Documents), MaxDocumentsPerMsg)
	}
	for i, doc := range m.Documents {
		if len(doc.Data) > MaxDocumentBytes {
			return errs.New(errs.Conversion, "document %d is %d bytes, exceeds vendor limit of %d", i, len(doc.Data), MaxDocumentBytes)
		}
	}
	if len(m.Documents) > 0 && m.Text == "" {
		return errs.New(errs.Conversion, "message text is required when documents are attached")
	}
	return nil
}

// Conversation is an optional system preamble plus an ordered sequence of
// messages.
type Conversation struct {
	System   string
	Messages []Message
}

// Validate runs Message.Validate across every message in the conversation.
func (c Conversation) Validate() error {
	for i, m := range c.Messages {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// FromPrompt builds a one-message user conversation from a plain text
// prompt.
func FromPrompt(text string) Conversation {
	return Conversation{
		Messages: []Message{
			{Role: RoleUser, Text: text},
		},
	}
}

// AddTextMessage appends a new text-only message with the given role and
// returns the updated conversation.
func (c Conversation) AddTextMessage(role Role, text string) Conversation {
	c.Messages = append(c.Messages, Message{Role: role, Text: text})
	return c
}

// AddUserMessage appends a user message, optionally carrying attachments.
func (c Conversation) AddUserMessage(text string, images []Image, documents []Document) Conversation {
	c.Messages = append(c.Messages, Message{Role: RoleUser, Text: text, Images: images, Documents: documents})
	return c
}

// AddAssistantMessage appends an assistant message.
func (c Conversation) AddAssistantMessage(text string) Conversation {
	return c.AddTextMessage(RoleAssistant, text)
}
