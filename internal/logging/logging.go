// Package logging configures apex/log for the cmd binaries. The level
// comes from ECS_LOG; output is one line per entry on stdout, which is
// what CloudWatch wants.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
)

// Init sets the handler and the log level from ECS_LOG (default INFO).
func Init() {
	level := strings.ToUpper(os.Getenv("ECS_LOG"))
	if level == "" {
		level = "INFO"
	}
	log.SetHandler(&lineHandler{w: os.Stdout})
	log.SetLevelFromString(level)
}

// lineHandler emits "LEVEL timestamp message k=v ..." so CloudWatch metric
// filters can key on the first token.
type lineHandler struct {
	w io.Writer
}

func (h *lineHandler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s",
		strings.ToUpper(e.Level.String()),
		time.Now().UTC().Format(time.RFC3339),
		e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')
	_, err := io.WriteString(h.w, b.String())
	return err
}
