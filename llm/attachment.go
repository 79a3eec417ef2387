package llm

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// Attachment is media carried by a user message: an Image or a Document.
type Attachment interface {
	isAttachment()
}

// Image is either inline base64 data or a reference to a URL.
type Image struct {
	MimeType string
	Data     string
	URL      string
}

func (Image) isAttachment() {}

// ImageFromBase64 creates an inline image from already encoded data.
func ImageFromBase64(data, mimeType string) Image {
	return Image{MimeType: mimeType, Data: data}
}

// ImageFromBytes creates an inline image, sniffing the mime type when
// mimeType is empty.
func ImageFromBytes(raw []byte, mimeType string) Image {
	if mimeType == "" {
		mimeType = http.DetectContentType(raw)
	}
	return Image{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(raw)}
}

// ImageFromURL creates an image that the provider fetches itself.
func ImageFromURL(url, mimeType string) Image {
	return Image{MimeType: mimeType, URL: url}
}

// IsURL reports whether the image is a URL reference rather than inline data.
func (i Image) IsURL() bool {
	return i.URL != ""
}

// DocumentFormat discriminates how a document payload is carried.
type DocumentFormat string

const (
	DocumentBase64  DocumentFormat = "base64"
	DocumentText    DocumentFormat = "text"
	DocumentContent DocumentFormat = "content"
)

// Document is an inline payload (base64 or plain text) or a list of text
// chunks. Title and Context are optional.
type Document struct {
	Format   DocumentFormat
	MimeType string
	Data     string
	Chunks   []string
	Title    string
	Context  string
	ProviderMeta
}

func (Document) isAttachment() {}

// DocumentOption customises a document at construction.
type DocumentOption func(*Document)

// WithTitle sets the document title.
func WithTitle(title string) DocumentOption {
	return func(d *Document) { d.Title = title }
}

// WithContext sets the document context.
func WithContext(context string) DocumentOption {
	return func(d *Document) { d.Context = context }
}

// WithDocumentMeta sets the document's provider metadata.
func WithDocumentMeta(meta ProviderMeta) DocumentOption {
	return func(d *Document) { d.ProviderMeta = meta }
}

// DocumentFromBase64 creates a document from base64 encoded binary data.
func DocumentFromBase64(data, mimeType string, opts ...DocumentOption) Document {
	return newDocument(Document{Format: DocumentBase64, MimeType: mimeType, Data: data}, opts)
}

// DocumentFromText creates a plain text document.
func DocumentFromText(text string, opts ...DocumentOption) Document {
	return newDocument(Document{Format: DocumentText, MimeType: "text/plain", Data: text}, opts)
}

// DocumentFromChunks creates a document from ordered text chunks.
func DocumentFromChunks(chunks []string, opts ...DocumentOption) Document {
	return newDocument(Document{Format: DocumentContent, Chunks: chunks}, opts)
}

func newDocument(d Document, opts []DocumentOption) Document {
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// IsChunked reports whether the document carries chunked content.
func (d Document) IsChunked() bool {
	return d.Format == DocumentContent
}

// Validate checks that exactly one of Data and Chunks is populated, as the
// format requires.
func (d Document) Validate() error {
	switch d.Format {
	case DocumentBase64, DocumentText:
		if len(d.Chunks) > 0 {
			return NewConfigurationError(fmt.Sprintf("%s document must not carry chunks", d.Format))
		}
		if d.Data == "" {
			return NewConfigurationError(fmt.Sprintf("%s document has no data", d.Format))
		}
	case DocumentContent:
		if d.Data != "" {
			return NewConfigurationError("chunked document must not carry inline data")
		}
		if len(d.Chunks) == 0 {
			return NewConfigurationError("chunked document has no chunks")
		}
	default:
		return NewConfigurationError(fmt.Sprintf("unknown document format %q", d.Format))
	}
	return nil
}
