package declaration_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apoliade/OpenTermsArchive/internal/declaration"
	"github.com/apoliade/OpenTermsArchive/internal/testutil"
)

func writeDeclaration(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write declaration: %v", err)
	}
}

func TestLoad_ServiceIDFromFileName(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDeclaration(t, dir, "acme.json", `{
		"name": "Acme Inc.",
		"documents": {
			"Terms of Service": {"fetch": "https://acme.test/tos", "select": ["main"]}
		}
	}`)

	services, err := declaration.Load(dir, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	svc, ok := services["acme"]
	if !ok {
		t.Fatalf("expected service acme, got %v", services)
	}
	if svc.Name != "Acme Inc." {
		t.Errorf("name = %q", svc.Name)
	}
	doc, ok := svc.Documents["Terms of Service"]
	if !ok {
		t.Fatal("expected Terms of Service document")
	}
	if doc.Location != "https://acme.test/tos" {
		t.Errorf("location = %q", doc.Location)
	}
	if len(doc.ContentSelectors) != 1 || doc.ContentSelectors[0] != "main" {
		t.Errorf("selectors = %v", doc.ContentSelectors)
	}
}

func TestLoad_MissingFetchLocationFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDeclaration(t, dir, "broken.json", `{
		"documents": {"Terms of Service": {"select": ["main"]}}
	}`)

	if _, err := declaration.Load(dir, &testutil.DummyLogger{}); err == nil {
		t.Fatal("expected error for declaration without fetch location")
	}
}

func TestLoad_NonJSONFilesAreIgnored(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDeclaration(t, dir, "README.md", "not a declaration")
	writeDeclaration(t, dir, "acme.json", `{
		"documents": {"Privacy Policy": {"fetch": "https://acme.test/privacy"}}
	}`)

	services, err := declaration.Load(dir, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(services) != 1 {
		t.Errorf("expected 1 service, got %d", len(services))
	}
}

func TestLoad_ServiceWithoutDocumentsIsSkipped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDeclaration(t, dir, "empty.json", `{"name": "Empty", "documents": {}}`)

	services, err := declaration.Load(dir, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(services) != 0 {
		t.Errorf("expected empty map, got %v", services)
	}
}

func TestLoad_MalformedJSONFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDeclaration(t, dir, "bad.json", `{`)

	if _, err := declaration.Load(dir, &testutil.DummyLogger{}); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestLoad_ExecuteClientScriptsFlag(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeDeclaration(t, dir, "spa.json", `{
		"documents": {
			"Terms of Service": {"fetch": "https://spa.test/tos", "executeClientScripts": true}
		}
	}`)

	services, err := declaration.Load(dir, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !services["spa"].Documents["Terms of Service"].ExecuteClientScripts {
		t.Error("expected executeClientScripts to be set")
	}
}
