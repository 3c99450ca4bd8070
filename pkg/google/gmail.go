package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	syncdomain "edcrm-backend/internal/sync/domain"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const gmailUser = "me"

// MessageHeader is the lightweight projection stored by header ingestion.
// Subject and body are deliberately absent; backfill owns those.
type MessageHeader struct {
	ProviderID string
	ThreadID   string
	From       string
	To         []string
	Cc         []string
	Bcc        []string
	SentAt     time.Time
}

// MailQuery builds the Gmail search expression for a half-open scan window.
func MailQuery(since, until time.Time) string {
	return fmt.Sprintf("after:%d before:%d", since.UTC().Unix(), until.UTC().Unix())
}

// ListMessageHeaders pages through the message list for query, fetching a
// metadata projection per id and handing each page to onPage for a single
// batched upsert. Returns the count fetched and whether the listing ran to
// completion (false on budget exhaustion or maxItems cap). A failing listing
// call aborts; a failing per-item fetch is skipped.
func (s *Service) ListMessageHeaders(ctx context.Context, srv *gmail.Service, query string, pageSize int64, maxItems int, budget *Budget, onPage func([]MessageHeader) error) (int, bool, error) {
	if pageSize <= 0 || pageSize > 500 {
		pageSize = 100
	}

	pageToken := ""
	fetched := 0

	for {
		if err := s.wait(ctx); err != nil {
			return fetched, false, err
		}

		call := srv.Users.Messages.List(gmailUser).Q(query).MaxResults(pageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return fetched, false, wrapProviderError("gmail.messages.list", err)
		}

		page := make([]MessageHeader, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			if maxItems > 0 && fetched+len(page) >= maxItems {
				break
			}
			if err := s.wait(ctx); err != nil {
				return fetched, false, err
			}
			header, err := s.fetchHeader(ctx, srv, m.Id)
			if err != nil {
				// Item-level failure: skip, the next scheduled scan of the
				// overlap window retries it.
				log.Printf("[Gmail] Skipping message %s: %v", m.Id, err)
				continue
			}
			page = append(page, *header)
		}

		if len(page) > 0 {
			if err := onPage(page); err != nil {
				return fetched, false, err
			}
			fetched += len(page)
		}

		if maxItems > 0 && fetched >= maxItems {
			return fetched, false, nil
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return fetched, true, nil
		}
		if budget.Exceeded() {
			return fetched, false, nil
		}
	}
}

func (s *Service) fetchHeader(ctx context.Context, srv *gmail.Service, id string) (*MessageHeader, error) {
	msg, err := srv.Users.Messages.Get(gmailUser, id).
		Format("metadata").
		MetadataHeaders("From", "To", "Cc", "Bcc", "Date").
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	var headers []*gmail.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	return &MessageHeader{
		ProviderID: msg.Id,
		ThreadID:   msg.ThreadId,
		From:       firstAddress(getHeader(headers, "From")),
		To:         splitAddresses(getHeader(headers, "To")),
		Cc:         splitAddresses(getHeader(headers, "Cc")),
		Bcc:        splitAddresses(getHeader(headers, "Bcc")),
		SentAt:     time.UnixMilli(msg.InternalDate).UTC(),
	}, nil
}

// FetchMessageContent retrieves the full message and extracts subject, bodies
// and attachment descriptors from the MIME part tree.
func (s *Service) FetchMessageContent(ctx context.Context, srv *gmail.Service, id string) (*MessageContent, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	msg, err := srv.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapProviderError("gmail.messages.get", err)
	}
	content := extractContent(msg.Payload)
	return &content, nil
}

// FetchAttachment downloads one attachment's bytes.
func (s *Service) FetchAttachment(ctx context.Context, srv *gmail.Service, messageID, attachmentID string) ([]byte, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	part, err := srv.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, wrapProviderError("gmail.attachments.get", err)
	}
	data, err := decodeBase64URL(part.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode attachment data: %w", err)
	}
	return data, nil
}

// SendAttachment is one file to attach to an outbound message.
type SendAttachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// SendEmail composes a raw RFC822 message and sends it through the user's
// account. Pass-through for the CRM's compose box, not part of the sync core.
func (s *Service) SendEmail(ctx context.Context, srv *gmail.Service, fromName, fromEmail, to, cc, bcc, subject, body string, attachments []SendAttachment) error {
	var emailMsg bytes.Buffer
	boundary := "edcrm_mail_boundary"

	if fromName != "" && fromEmail != "" {
		encodedName := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(fromName)))
		emailMsg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", encodedName, fromEmail))
	}
	emailMsg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	if cc != "" {
		emailMsg.WriteString(fmt.Sprintf("Cc: %s\r\n", cc))
	}
	if bcc != "" {
		emailMsg.WriteString(fmt.Sprintf("Bcc: %s\r\n", bcc))
	}
	// RFC 2047 encoding keeps non-ASCII subjects intact.
	encodedSubject := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))
	emailMsg.WriteString(fmt.Sprintf("Subject: %s\r\n", encodedSubject))
	emailMsg.WriteString("MIME-Version: 1.0\r\n")
	emailMsg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", boundary))

	emailMsg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	emailMsg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	emailMsg.WriteString(body)
	emailMsg.WriteString("\r\n")

	for _, att := range attachments {
		encodedContent := base64.StdEncoding.EncodeToString(att.Content)

		emailMsg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		emailMsg.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", att.MimeType, att.Filename))
		emailMsg.WriteString("Content-Transfer-Encoding: base64\r\n")
		emailMsg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", att.Filename))

		for i := 0; i < len(encodedContent); i += 76 {
			end := i + 76
			if end > len(encodedContent) {
				end = len(encodedContent)
			}
			emailMsg.WriteString(encodedContent[i:end] + "\r\n")
		}
	}

	emailMsg.WriteString(fmt.Sprintf("--%s--", boundary))

	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := srv.Users.Messages.Send(gmailUser, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(emailMsg.Bytes()),
	}).Context(ctx).Do()
	if err != nil {
		return wrapProviderError("gmail.messages.send", err)
	}
	return nil
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// splitAddresses parses an address-list header into bare lowercase addresses.
func splitAddresses(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if parsed, err := mail.ParseAddressList(value); err == nil {
		out := make([]string, 0, len(parsed))
		for _, a := range parsed {
			out = append(out, strings.ToLower(a.Address))
		}
		return out
	}
	// Malformed header: best-effort comma split.
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if idx := strings.Index(p, "<"); idx >= 0 {
			p = strings.Trim(p[idx:], "<>")
		}
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func normalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func firstAddress(value string) string {
	addrs := splitAddresses(value)
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}

// decodeBase64URL tolerates both padded and unpadded base64url, which Gmail
// mixes across endpoints.
func decodeBase64URL(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

func wrapProviderError(op string, err error) error {
	status := 0
	if apiErr, ok := err.(*googleapi.Error); ok {
		status = apiErr.Code
	}
	return &syncdomain.ProviderAPIError{Op: op, StatusCode: status, Err: err}
}
