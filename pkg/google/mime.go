package google

import (
	"google.golang.org/api/gmail/v1"
)

// maxPartDepth caps the MIME tree walk. Real messages rarely nest past a
// handful of levels; anything deeper is treated as hostile and truncated.
const maxPartDepth = 50

// MessageContent is everything backfill extracts from a full message.
type MessageContent struct {
	Subject     string
	BodyText    string
	BodyHTML    string
	Attachments []AttachmentDescriptor
}

// AttachmentDescriptor identifies one downloadable part.
type AttachmentDescriptor struct {
	AttachmentID string
	Filename     string
	MimeType     string
	Size         int64
}

type stackItem struct {
	part  *gmail.MessagePart
	depth int
}

// extractContent walks the MIME part tree iteratively, collecting the first
// text/plain part, the first text/html part, and a descriptor for every part
// that carries an attachment id or a filename. Parts may nest arbitrarily;
// the explicit stack keeps deeply nested payloads from blowing the call
// stack.
func extractContent(payload *gmail.MessagePart) MessageContent {
	var content MessageContent
	if payload == nil {
		return content
	}
	content.Subject = getHeader(payload.Headers, "Subject")

	stack := []stackItem{{part: payload, depth: 0}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		part := item.part
		if part == nil || item.depth > maxPartDepth {
			continue
		}

		isAttachment := part.Body != nil && part.Body.AttachmentId != "" || part.Filename != ""
		if isAttachment {
			desc := AttachmentDescriptor{
				Filename: part.Filename,
				MimeType: part.MimeType,
			}
			if part.Body != nil {
				desc.AttachmentID = part.Body.AttachmentId
				desc.Size = part.Body.Size
			}
			content.Attachments = append(content.Attachments, desc)
		} else if part.Body != nil && part.Body.Data != "" {
			switch part.MimeType {
			case "text/plain":
				if content.BodyText == "" {
					if data, err := decodeBase64URL(part.Body.Data); err == nil {
						content.BodyText = string(data)
					}
				}
			case "text/html":
				if content.BodyHTML == "" {
					if data, err := decodeBase64URL(part.Body.Data); err == nil {
						content.BodyHTML = string(data)
					}
				}
			}
		}

		// Push children in reverse so the walk visits them in document order.
		for i := len(part.Parts) - 1; i >= 0; i-- {
			stack = append(stack, stackItem{part: part.Parts[i], depth: item.depth + 1})
		}
	}

	return content
}
