package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCrashHandlerSetContext(t *testing.T) {
	globalContext = &crashContext{}

	SetBasePath("/tmp/test-ansible-policy")
	SetVersion("1.0.0-test")
	SetCommand("eval")
	SetLastArtifact("policies/mysql/disallow_root.rego")

	globalContext.mu.RLock()
	defer globalContext.mu.RUnlock()

	if globalContext.basePath != "/tmp/test-ansible-policy" {
		t.Errorf("expected basePath '/tmp/test-ansible-policy', got %q", globalContext.basePath)
	}
	if globalContext.version != "1.0.0-test" {
		t.Errorf("expected version '1.0.0-test', got %q", globalContext.version)
	}
	if globalContext.command != "eval" {
		t.Errorf("expected command 'eval', got %q", globalContext.command)
	}
	if globalContext.lastArtifact != "policies/mysql/disallow_root.rego" {
		t.Errorf("expected lastArtifact to match, got %q", globalContext.lastArtifact)
	}
}

func TestCrashHandlerSetLastArtifactTruncation(t *testing.T) {
	globalContext = &crashContext{}

	long := strings.Repeat("a", 3000)
	SetLastArtifact(long)

	globalContext.mu.RLock()
	defer globalContext.mu.RUnlock()

	if len(globalContext.lastArtifact) > 520 {
		t.Errorf("expected lastArtifact to be truncated, got length %d", len(globalContext.lastArtifact))
	}
	if !strings.HasSuffix(globalContext.lastArtifact, "... [truncated]") {
		t.Errorf("expected truncation marker, got %q", globalContext.lastArtifact[len(globalContext.lastArtifact)-30:])
	}
}

func TestGetCrashLogDirDefaultsWhenBasePathEmpty(t *testing.T) {
	globalContext = &crashContext{}
	dir := getCrashLogDir()
	if dir != filepath.Join(".ansible-policy", CrashLogDir) {
		t.Errorf("expected default crash log dir, got %q", dir)
	}
}

func TestWriteAndFormatCrashLog(t *testing.T) {
	tmp := t.TempDir()
	globalContext = &crashContext{}
	SetBasePath(tmp)
	SetVersion("0.1.0")
	SetCommand("compile")
	SetLastArtifact("playbooks/site.yml")

	log := createCrashLog("boom: nil pointer")
	if err := writeCrashLog(log); err != nil {
		t.Fatalf("writeCrashLog: %v", err)
	}

	path := getCrashLogPath(log.Timestamp)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read crash log: %v", err)
	}
	body := string(content)
	if !strings.Contains(body, "ANSIBLE-POLICY CRASH LOG") {
		t.Errorf("expected crash log header, got:\n%s", body)
	}
	if !strings.Contains(body, "boom: nil pointer") {
		t.Errorf("expected panic value in log, got:\n%s", body)
	}
	if !strings.Contains(body, "LAST ARTIFACT IN FLIGHT") {
		t.Errorf("expected last-artifact section, got:\n%s", body)
	}
	if !strings.Contains(body, "playbooks/site.yml") {
		t.Errorf("expected artifact value in log, got:\n%s", body)
	}
}

func TestCleanOldCrashLogsKeepsMax(t *testing.T) {
	tmp := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < MaxCrashLogs+5; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		name := filepath.Join(tmp, "crash_"+ts.Format("20060102_150405")+".log")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed crash log: %v", err)
		}
	}

	if err := cleanOldCrashLogs(tmp); err != nil {
		t.Fatalf("cleanOldCrashLogs: %v", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != MaxCrashLogs {
		t.Errorf("expected %d crash logs remaining, got %d", MaxCrashLogs, len(entries))
	}
}

func TestCleanOldCrashLogsMissingDirIsNotError(t *testing.T) {
	if err := cleanOldCrashLogs(filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Errorf("expected nil error for missing dir, got %v", err)
	}
}
