package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/kvstore"
	"github.com/iconidentify/xreply/internal/settings"
	"github.com/iconidentify/xreply/pkg/crypto"
)

func TestSettingsService_UpdateGlobalSettings(t *testing.T) {
	tests := []struct {
		name  string
		patch settings.RawGlobalSettings
		want  domain.GlobalSettings
	}{
		{"tone only keeps the rest", settings.RawGlobalSettings{"tone": "toxic"}, domain.GlobalSettings{MaxChars: 220, Tone: domain.ToneToxic, Humanize: true}},
		{"clamps high", settings.RawGlobalSettings{"maxChars": 9999}, domain.GlobalSettings{MaxChars: 500, Tone: domain.ToneNeutral, Humanize: true}},
		{"numeric string", settings.RawGlobalSettings{"maxChars": "100"}, domain.GlobalSettings{MaxChars: 100, Tone: domain.ToneNeutral, Humanize: true}},
		{"garbage falls back", settings.RawGlobalSettings{"maxChars": "abc", "tone": "rude", "humanize": "nope"}, domain.GlobalSettings{MaxChars: 220, Tone: domain.ToneNeutral, Humanize: true}},
		{"humanize string", settings.RawGlobalSettings{"humanize": "false"}, domain.GlobalSettings{MaxChars: 220, Tone: domain.ToneNeutral, Humanize: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			svc := env.settingsService()
			ctx := context.Background()

			got, err := svc.UpdateGlobalSettings(ctx, tt.patch)
			if err != nil {
				t.Fatalf("UpdateGlobalSettings() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			stored, _ := svc.GlobalSettings(ctx)
			if stored != tt.want {
				t.Errorf("stored %+v, want %+v", stored, tt.want)
			}
		})
	}
}

func TestSettingsService_LengthSegments(t *testing.T) {
	segs := newTestEnv(t).settingsService().LengthSegments()
	want := []int{100, 220, 400}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments", len(segs))
	}
	for i, s := range segs {
		if s.MaxChars != want[i] {
			t.Errorf("segment %d = %d, want %d", i, s.MaxChars, want[i])
		}
	}
}

func TestSettingsService_UpdateModes(t *testing.T) {
	env := newTestEnv(t)
	svc := env.settingsService()
	ctx := context.Background()

	modes, err := svc.UpdateModes(ctx, []ModeEdit{
		{ID: "agree", Label: "  ", PromptTemplate: "  say yes loudly  ", Enabled: boolPtr(false)},
		{ID: "funny", Label: "LOL"},
	})
	if err != nil {
		t.Fatalf("UpdateModes() error = %v", err)
	}
	if len(modes) != len(settings.ModeIDs()) || modes[0].ID != "one-liner" {
		t.Fatalf("modes not in preset order: %+v", modes)
	}

	byID := map[string]domain.ModeConfig{}
	for _, m := range modes {
		byID[m.ID] = m
	}
	agree := byID["agree"]
	if agree.Label != "👍 Agree" || agree.PromptTemplate != "say yes loudly" || agree.Enabled {
		t.Errorf("agree = %+v", agree)
	}
	if byID["funny"].Label != "LOL" || !byID["funny"].Enabled {
		t.Errorf("funny = %+v", byID["funny"])
	}

	// Reloading merges the stored overrides to the same result.
	reloaded, _ := svc.Modes(ctx)
	for i := range reloaded {
		if reloaded[i] != modes[i] {
			t.Errorf("reloaded[%d] = %+v, want %+v", i, reloaded[i], modes[i])
		}
	}

	if _, err := svc.UpdateModes(ctx, []ModeEdit{{ID: "roast"}}); !errors.Is(err, domain.ErrUnknownMode) {
		t.Errorf("unknown id error = %v", err)
	}
}

func TestSettingsService_ActiveModes(t *testing.T) {
	env := newTestEnv(t)
	svc := env.settingsService()
	ctx := context.Background()

	active, err := svc.ActiveModes(ctx)
	if err != nil || len(active) != len(settings.ModeIDs()) {
		t.Fatalf("ActiveModes() = %d, %v", len(active), err)
	}

	var edits []ModeEdit
	for _, id := range settings.ModeIDs() {
		edits = append(edits, ModeEdit{ID: id, Enabled: boolPtr(id == "quote")})
	}
	if _, err := svc.UpdateModes(ctx, edits); err != nil {
		t.Fatalf("UpdateModes() error = %v", err)
	}
	active, err = svc.ActiveModes(ctx)
	if err != nil || len(active) != 1 || active[0].ID != "quote" {
		t.Errorf("ActiveModes() = %+v, %v", active, err)
	}

	for i := range edits {
		edits[i].Enabled = boolPtr(false)
	}
	if _, err := svc.UpdateModes(ctx, edits); err != nil {
		t.Fatalf("UpdateModes() error = %v", err)
	}
	if _, err := svc.ActiveModes(ctx); !errors.Is(err, domain.ErrNoActiveMode) {
		t.Errorf("error = %v, want ErrNoActiveMode", err)
	}
}

func TestSettingsService_AddPersona(t *testing.T) {
	env := newTestEnv(t)
	svc := env.settingsService()
	ctx := context.Background()

	if _, err := svc.AddPersona(ctx, " ", ""); !errors.Is(err, domain.ErrEmptyPersona) {
		t.Errorf("empty persona error = %v", err)
	}

	for i := 0; i < domain.MaxPersonas; i++ {
		p, err := svc.AddPersona(ctx, "P", "desc")
		if err != nil {
			t.Fatalf("AddPersona(%d) error = %v", i, err)
		}
		if !strings.HasPrefix(p.ID, "persona-") {
			t.Errorf("id = %q", p.ID)
		}
	}
	if _, err := svc.AddPersona(ctx, "Fourth", ""); !errors.Is(err, domain.ErrTooManyPersonas) {
		t.Errorf("fourth persona error = %v", err)
	}

	personas, _ := svc.Personas(ctx)
	if len(personas) != domain.MaxPersonas {
		t.Errorf("stored %d personas", len(personas))
	}
}

func TestSettingsService_SavePersonas(t *testing.T) {
	env := newTestEnv(t)
	svc := env.settingsService()
	ctx := context.Background()

	if err := kvstore.SetJSON(ctx, env.store, kvstore.TierSync, "temperature", 0.7); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	keep, _ := svc.AddPersona(ctx, "Keep", "")
	drop, _ := svc.AddPersona(ctx, "Drop", "")
	if err := svc.SetActivePersona(ctx, drop.ID); err != nil {
		t.Fatalf("SetActivePersona() error = %v", err)
	}

	saved, err := svc.SavePersonas(ctx, []domain.Persona{
		keep,
		{Name: "  ", Description: " "},
		{Name: "  New  ", Description: " fresh "},
	})
	if err != nil {
		t.Fatalf("SavePersonas() error = %v", err)
	}
	if len(saved) != 2 || saved[1].Name != "New" || saved[1].Description != "fresh" || saved[1].ID == "" {
		t.Errorf("saved = %+v", saved)
	}

	active, _ := env.config.ActivePersonaID(ctx)
	if active != "" {
		t.Errorf("active persona %q should be cleared after removal", active)
	}
	if _, err := env.store.Get(ctx, kvstore.TierSync, "temperature"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("legacy key still present: %v", err)
	}

	four := []domain.Persona{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}
	if _, err := svc.SavePersonas(ctx, four); !errors.Is(err, domain.ErrTooManyPersonas) {
		t.Errorf("error = %v, want ErrTooManyPersonas", err)
	}
}

func TestSettingsService_SetActivePersona(t *testing.T) {
	env := newTestEnv(t)
	svc := env.settingsService()
	ctx := context.Background()

	if err := svc.SetActivePersona(ctx, "persona-1-missing"); !errors.Is(err, domain.ErrPersonaNotFound) {
		t.Errorf("error = %v, want ErrPersonaNotFound", err)
	}

	p, _ := svc.AddPersona(ctx, "Me", "")
	if err := svc.SetActivePersona(ctx, p.ID); err != nil {
		t.Fatalf("SetActivePersona() error = %v", err)
	}
	snap, _ := svc.Snapshot(ctx)
	if snap.ActivePersona == nil || snap.ActivePersona.ID != p.ID {
		t.Errorf("active persona = %+v", snap.ActivePersona)
	}

	if err := svc.SetActivePersona(ctx, ""); err != nil {
		t.Fatalf("clear error = %v", err)
	}
	snap, _ = svc.Snapshot(ctx)
	if snap.ActivePersonaID != "" || snap.ActivePersona != nil {
		t.Errorf("active persona not cleared: %+v", snap)
	}
}

func TestSettingsService_SaveOptions(t *testing.T) {
	env := newTestEnv(t)
	svc := env.settingsService()
	ctx := context.Background()

	if err := kvstore.SetJSON(ctx, env.store, kvstore.TierSync, "language", "en"); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	snap, err := svc.SaveOptions(ctx, OptionsForm{
		LicenseKey:     "  LIC-9  ",
		GlobalSettings: settings.RawGlobalSettings{"maxChars": 30, "tone": "professional", "humanize": false},
		Modes: []ModeEdit{
			{ID: "quote", Label: "", PromptTemplate: " be quotable ", Enabled: boolPtr(false)},
		},
		GeneralPrompt: "  no hashtags ",
		Personas: []domain.Persona{
			{Name: "Builder"},
			{},
		},
	})
	if err != nil {
		t.Fatalf("SaveOptions() error = %v", err)
	}

	if snap.LicenseKey != "LIC-9" || snap.GeneralPrompt != "no hashtags" {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.GlobalSettings != (domain.GlobalSettings{MaxChars: 50, Tone: domain.ToneProfessional, Humanize: false}) {
		t.Errorf("global settings = %+v", snap.GlobalSettings)
	}
	quote := snap.Modes["quote"]
	if quote.Label != "😎 Quote" || quote.PromptTemplate != "be quotable" || quote.Enabled {
		t.Errorf("quote = %+v", quote)
	}
	if len(snap.Personas) != 1 || snap.Personas[0].Name != "Builder" {
		t.Errorf("personas = %+v", snap.Personas)
	}
	if _, err := env.store.Get(ctx, kvstore.TierSync, "language"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Errorf("legacy key still present: %v", err)
	}

	tooMany := OptionsForm{Personas: []domain.Persona{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}}
	if _, err := svc.SaveOptions(ctx, tooMany); !errors.Is(err, domain.ErrTooManyPersonas) {
		t.Errorf("error = %v, want ErrTooManyPersonas", err)
	}
}

func TestSettingsService_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestEnv(t)
	srcSvc := src.settingsService()

	src.setLicenseKey(t, "LIC-EXPORT")
	if _, err := srcSvc.UpdateGlobalSettings(ctx, settings.RawGlobalSettings{"tone": "degen"}); err != nil {
		t.Fatalf("UpdateGlobalSettings() error = %v", err)
	}
	if _, err := srcSvc.AddPersona(ctx, "Exported", ""); err != nil {
		t.Fatalf("AddPersona() error = %v", err)
	}

	data, err := srcSvc.Export(ctx, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if crypto.IsSealed(data) || !strings.Contains(string(data), "LIC-EXPORT") {
		t.Fatalf("plain export = %s", data)
	}

	dst := newTestEnv(t)
	dst.setLicenseKey(t, "LIC-OLD")
	dstSvc := dst.settingsService()
	if err := dstSvc.Import(ctx, data, ""); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	snap, _ := dstSvc.Snapshot(ctx)
	if snap.LicenseKey != "LIC-EXPORT" || snap.GlobalSettings.Tone != domain.ToneDegen {
		t.Errorf("imported snapshot = %+v", snap)
	}
	if len(snap.Personas) != 1 || snap.Personas[0].Name != "Exported" {
		t.Errorf("imported personas = %+v", snap.Personas)
	}
}

func TestSettingsService_SealedExport(t *testing.T) {
	ctx := context.Background()
	src := newTestEnv(t)
	src.setLicenseKey(t, "LIC-SECRET")
	srcSvc := src.settingsService()

	sealed, err := srcSvc.Export(ctx, "hunter2")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !crypto.IsSealed(sealed) || strings.Contains(string(sealed), "LIC-SECRET") {
		t.Fatal("export should be sealed")
	}

	dstSvc := newTestEnv(t).settingsService()

	err = dstSvc.Import(ctx, sealed, "")
	if !errors.Is(err, domain.ErrInvalidImport) || !errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("no passphrase error = %v", err)
	}
	err = dstSvc.Import(ctx, sealed, "wrong")
	if !errors.Is(err, domain.ErrInvalidImport) || !errors.Is(err, crypto.ErrOpenFailed) {
		t.Errorf("wrong passphrase error = %v", err)
	}
	if err := dstSvc.Import(ctx, sealed, "hunter2"); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	key, _ := dstSvc.config.LicenseKey(ctx)
	if key != "LIC-SECRET" {
		t.Errorf("license key = %q", key)
	}
}

func TestSettingsService_ImportInvalid(t *testing.T) {
	svc := newTestEnv(t).settingsService()
	for _, data := range []string{"not json", "[1,2]", "null"} {
		if err := svc.Import(context.Background(), []byte(data), ""); !errors.Is(err, domain.ErrInvalidImport) {
			t.Errorf("Import(%q) error = %v, want ErrInvalidImport", data, err)
		}
	}
}

func TestSettingsService_ExportFile(t *testing.T) {
	env := newTestEnv(t)
	svc := env.settingsService()
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := svc.ExportFile(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("ExportFile() error = %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".json" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if _, err := settings.ParseDocument(data); err != nil {
		t.Errorf("exported file does not parse: %v", err)
	}

	sealedPath, err := svc.ExportFile(context.Background(), dir, "pw")
	if err != nil {
		t.Fatalf("ExportFile() sealed error = %v", err)
	}
	if filepath.Ext(sealedPath) != ".xrcr" {
		t.Errorf("sealed path = %q", sealedPath)
	}
}
