// Package intake accepts uploaded files: it fingerprints the stream,
// records the provenance entry and stages the bytes in a temporary file
// for random-access parsing.
package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roach88/pamana/internal/config"
	"github.com/roach88/pamana/internal/ir"
	"github.com/roach88/pamana/internal/store"
	"github.com/roach88/pamana/internal/workbook"
)

// chunkSize is the read size used while fingerprinting.
const chunkSize = 4 << 10

// maxBaseName bounds the sanitized part of a temp file name.
const maxBaseName = 96

// Ticket describes an accepted upload. TempPath is only valid inside the
// callback passed to Accept.
type Ticket struct {
	Fingerprint  string
	TempPath     string
	Kind         ir.Kind
	Format       workbook.Format
	OriginalName string
	SizeBytes    int64

	// Import is the provenance entry: a new one in the processing state,
	// or for a forced upload the existing entry as it stands.
	Import store.ImportedFile

	// Restart holds a forced upload's file attributes. They are written
	// onto Import when the run completes; a failed run leaves the entry
	// untouched.
	Restart *store.ImportedFile

	// Superseded is set when a forced upload reuses an existing entry.
	Superseded bool
}

// ArrivalSeq is the arrival sequence number of this upload.
func (t *Ticket) ArrivalSeq() int64 {
	if t.Restart != nil {
		return t.Restart.ArrivalSeq
	}
	return t.Import.ArrivalSeq
}

// Intake stages uploads.
type Intake struct {
	store   *store.Store
	nextSeq func() int64
	tempDir string
	log     logrus.FieldLogger
	now     func() time.Time
}

// Option configures an Intake.
type Option func(*Intake)

// WithTempDir sets the directory temp files are created in.
func WithTempDir(dir string) Option {
	return func(in *Intake) { in.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(in *Intake) { in.log = log }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(in *Intake) { in.now = now }
}

// New creates an Intake. nextSeq hands out arrival sequence numbers.
func New(s *store.Store, nextSeq func() int64, opts ...Option) *Intake {
	in := &Intake{
		store:   s,
		nextSeq: nextSeq,
		tempDir: os.TempDir(),
		log:     config.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.log = in.log.WithField("module", "intake")
	return in
}

// Accept stages r under name and calls fn with the ticket. The temp file
// is removed when Accept returns, whatever fn does.
//
// Errors before fn runs:
//   - UnsupportedExtension when name is not .xls, .xlsx or .pdf
//   - UnreadableStream when r fails mid-read
//   - DuplicateFile when the content was imported before and force is
//     false; the error carries the prior entry's id, time and record count
//
// With force, an existing entry is reused; it keeps its recorded outcome
// until the new run finalizes it.
func (in *Intake) Accept(ctx context.Context, r io.Reader, name string, kind ir.Kind, force bool, fn func(context.Context, *Ticket) error) error {
	format, err := workbook.FormatOf(name)
	if err != nil {
		return ir.NewUnsupportedExtensionError(name)
	}

	tmp, err := os.CreateTemp(in.tempDir, TempPattern(name))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() {
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			in.log.WithError(rerr).WithField("path", path).Warn("remove temp file")
		}
	}()

	fingerprint, size, err := copyAndHash(ctx, tmp, r)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ir.NewUnreadableError(0, err)
	}

	t := &Ticket{
		Fingerprint:  fingerprint,
		TempPath:     path,
		Kind:         kind,
		Format:       format,
		OriginalName: name,
		SizeBytes:    size,
	}
	if err := in.record(ctx, t, force); err != nil {
		return err
	}
	in.log.WithFields(logrus.Fields{
		"provenance_id": t.Import.ID,
		"file":          name,
		"kind":          kind,
		"size_bytes":    size,
		"arrival_seq":   t.ArrivalSeq(),
		"superseded":    t.Superseded,
	}).Info("file accepted")
	return fn(ctx, t)
}

// record inserts the provenance entry. With force, an existing entry is
// reused and the new attributes wait on the ticket until completion.
func (in *Intake) record(ctx context.Context, t *Ticket, force bool) error {
	entry := store.ImportedFile{
		FileHash:   t.Fingerprint,
		Filename:   t.OriginalName,
		SizeBytes:  t.SizeBytes,
		Kind:       t.Kind,
		ArrivalSeq: in.nextSeq(),
		ImportedAt: in.now(),
	}
	got, inserted, err := in.store.InsertImport(ctx, entry)
	if err != nil {
		return err
	}
	if inserted {
		t.Import = got
		return nil
	}
	if !force {
		in.log.WithFields(logrus.Fields{"provenance_id": got.ID, "file": t.OriginalName}).Info("duplicate file rejected")
		return ir.NewDuplicateError(got.ID, got.ImportedAt, got.Records)
	}

	entry.ID = got.ID
	t.Import = got
	t.Restart = &entry
	t.Superseded = true
	return nil
}

// copyAndHash copies r into w in fixed-size chunks while computing the
// SHA-256 of the content.
func copyAndHash(ctx context.Context, w io.Writer, r io.Reader) (string, int64, error) {
	h := sha256.New()
	buf := make([]byte, chunkSize)
	var size int64
	for {
		if err := ctx.Err(); err != nil {
			return "", size, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			if _, err := w.Write(buf[:n]); err != nil {
				return "", size, fmt.Errorf("write temp file: %w", err)
			}
			size += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", size, rerr
		}
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// Fingerprint returns the SHA-256 of r's content.
func Fingerprint(r io.Reader) (string, error) {
	sum, _, err := copyAndHash(context.Background(), io.Discard, r)
	return sum, err
}

// TempPattern builds the os.CreateTemp pattern for an upload: a random
// 8-character prefix followed by the sanitized base name.
func TempPattern(name string) string {
	return uuid.NewString()[:8] + "-*-" + SanitizeName(name)
}

// SanitizeName reduces an uploaded file name to a safe base name: path
// components are dropped and anything but letters, digits, dot, dash and
// underscore becomes an underscore.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	base := filepath.Base(name)
	if base == "." || base == "/" || base == ".." {
		base = ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxBaseName {
		ext := filepath.Ext(out)
		if len(ext) >= maxBaseName {
			ext = ""
		}
		out = out[:maxBaseName-len(ext)] + ext
	}
	if out == "" {
		return "upload"
	}
	return out
}
