package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"domino-hall/internal/config"

	"github.com/rs/zerolog/log"
)

func TestRotatingWriterKeepsOneBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writer, err := newRotatingWriterBytes(path, 1024, 1)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()

	chunk := make([]byte, 600)
	for i := 0; i < 5; i++ {
		if _, err := writer.Write(chunk); err != nil {
			t.Fatalf("write chunk %d: %v", i, err)
		}
	}
	for _, p := range []string{path, path + ".1"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() > 1024 {
			t.Fatalf("%s is %d bytes, want <= 1024", p, info.Size())
		}
	}
	if _, err := os.Stat(path + ".2"); !os.IsNotExist(err) {
		t.Fatal("expected a single backup file")
	}
}

func TestRotatingWriterShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writer, err := newRotatingWriterBytes(path, 10, 2)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()

	for _, line := range []string{"first-line", "second-line", "third-line"} {
		if _, err := writer.Write([]byte(line)); err != nil {
			t.Fatalf("write %s: %v", line, err)
		}
	}
	want := map[string]string{path: "third-line", path + ".1": "second-line", path + ".2": "first-line"}
	for p, content := range want {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if string(b) != content {
			t.Fatalf("%s = %q, want %q", p, b, content)
		}
	}
}

func TestRotatingWriterWithoutBackupsTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writer, err := newRotatingWriterBytes(path, 10, 0)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer writer.Close()

	_, _ = writer.Write([]byte("0123456789"))
	_, _ = writer.Write([]byte("abc"))
	b, _ := os.ReadFile(path)
	if string(b) != "abc" {
		t.Fatalf("log = %q, want abc", b)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatal("no backup expected")
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	if err := Init(config.LogConfig{Level: "debug", Sink: config.FileSink{Path: path, MaxMB: 1, Backups: 1}}); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer Close()

	log.Info().Str("game_id", "g_1").Msg("hello")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"game_id":"g_1"`) {
		t.Fatalf("log line missing: %s", b)
	}
	if Writer() == os.Stdout {
		t.Fatal("expected Writer to include the file sink")
	}
}
