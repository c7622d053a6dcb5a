package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

const footerDivider = "-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-"

// headerValue strips line breaks so caller-supplied values can't smuggle
// extra headers into the message.
func headerValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// buildMIME renders the message as a raw RFC 5322 email: multipart/mixed
// wrapping a multipart/alternative (plain + HTML) body, plus the optional
// attachment as a base64 part.
func (c *Client) buildMIME(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", headerValue(c.sender))
	fmt.Fprintf(&buf, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&buf, "Subject: %s\r\n", headerValue(msg.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mixed.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	if err := c.writeBody(mixed, msg.Body); err != nil {
		return nil, err
	}

	if msg.AttachmentPath != "" {
		if err := writeAttachment(mixed, msg.AttachmentPath); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, fmt.Errorf("finalize message: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Client) writeBody(mixed *multipart.Writer, body string) error {
	var inner bytes.Buffer
	alt := multipart.NewWriter(&inner)

	text, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("text/plain; charset=%s", c.charset)},
	})
	if err != nil {
		return fmt.Errorf("build text part: %w", err)
	}
	fmt.Fprint(text, c.plainBody(body))

	htmlPart, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("text/html; charset=%s", c.charset)},
	})
	if err != nil {
		return fmt.Errorf("build html part: %w", err)
	}
	fmt.Fprint(htmlPart, c.htmlBody(body))

	if err := alt.Close(); err != nil {
		return fmt.Errorf("finalize body: %w", err)
	}

	part, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary())},
	})
	if err != nil {
		return fmt.Errorf("build body part: %w", err)
	}
	_, err = part.Write(inner.Bytes())
	return err
}

// plainBody appends the robot footer to the message text.
func (c *Client) plainBody(body string) string {
	return strings.Join([]string{
		body,
		"\r\n" + footerDivider,
		"\r\nBeep beep! I'm a robot. Email " + c.adminEmail + " if you have questions.",
		"\r\n",
	}, "")
}

// htmlBody renders the message as minimal HTML, newlines becoming <br>.
func (c *Client) htmlBody(body string) string {
	escaped := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")
	return "<html><head></head><body>" +
		escaped +
		"<hr><small>Beep beep! I'm a robot. Email " + c.adminEmail + " if you have questions.</small>" +
		"</body></html>"
}

func writeAttachment(mixed *multipart.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	name := filepath.Base(path)

	part, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/octet-stream"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", name)},
	})
	if err != nil {
		return fmt.Errorf("build attachment part: %w", err)
	}

	enc := base64.StdEncoding.EncodeToString(data)
	// 76-char lines per RFC 2045
	for len(enc) > 0 {
		n := min(76, len(enc))
		fmt.Fprintf(part, "%s\r\n", enc[:n])
		enc = enc[n:]
	}
	return nil
}
