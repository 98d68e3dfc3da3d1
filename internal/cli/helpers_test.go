package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSigningKey = "cli-test-signing-key-0123456789abcdef"

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type cliEnv struct {
	client     *redis.Client
	configPath string
	logs       *lockedBuffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	dir := t.TempDir()
	cfg := `store:
  bootstrap:
    safety_timeout: 5s
  profile:
    retry_delay: 20ms
provider:
  kind: local
  local:
    signing_key: ` + testSigningKey + `
    password:
      memory_kb: 8192
      time: 1
      parallelism: 1
profiles:
  kind: redis
storage:
  kind: file
  dir: ` + filepath.Join(dir, "sessions") + "\n"
	path := filepath.Join(dir, "storeauth.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{client: client, configPath: path, logs: &lockedBuffer{}}
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	opts := &options{redis: e.client, logOut: e.logs}
	root := newRootCommand(opts)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath, "--output", "json"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// lastCode finds the most recent one-time code the log mailer wrote.
func (e *cliEnv) lastCode(t *testing.T, purpose string) string {
	t.Helper()
	var code string
	sc := bufio.NewScanner(strings.NewReader(e.logs.String()))
	for sc.Scan() {
		var line map[string]any
		if json.Unmarshal(sc.Bytes(), &line) != nil {
			continue
		}
		if line["purpose"] == purpose {
			code, _ = line["code"].(string)
		}
	}
	if code == "" {
		t.Fatalf("no %s code in logs:\n%s", purpose, e.logs.String())
	}
	return code
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}
