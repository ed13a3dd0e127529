package collab

import (
	"errors"
	"sync"
	"testing"
)

func TestConfigTableDefaults(t *testing.T) {
	table := NewConfigTable()

	for _, role := range []string{RolePlanner, RoleWriter, RoleReviewer} {
		cfg, err := table.GetConfig(role)
		if err != nil {
			t.Fatalf("GetConfig(%s) failed: %v", role, err)
		}
		if cfg.Role != role {
			t.Errorf("role = %q, want %q", cfg.Role, role)
		}
		if cfg.Model == "" || cfg.SystemPrompt == "" {
			t.Errorf("%s config incomplete: %+v", role, cfg)
		}
	}

	if _, err := table.GetConfig("editor"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("unknown role error = %v", err)
	}
}

func TestConfigTableUpdateModel(t *testing.T) {
	table := NewConfigTable()

	updated, err := table.UpdateModel(RoleWriter, "openai/gpt-3.5-turbo")
	if err != nil {
		t.Fatalf("UpdateModel failed: %v", err)
	}
	if updated.Model != "openai/gpt-3.5-turbo" {
		t.Errorf("model = %q", updated.Model)
	}
	if updated.Role != RoleWriter || updated.SystemPrompt == "" {
		t.Errorf("update must replace the whole record consistently: %+v", updated)
	}

	got, _ := table.GetConfig(RoleWriter)
	if got.Model != "openai/gpt-3.5-turbo" {
		t.Errorf("persisted model = %q", got.Model)
	}

	if _, err := table.UpdateModel(RoleWriter, "nope/unknown"); err == nil {
		t.Error("expected error for unregistered model")
	}
	if _, err := table.UpdateModel("editor", "openai/gpt-4-turbo"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("unknown role error = %v", err)
	}
}

func TestConfigTableConcurrentAccess(t *testing.T) {
	table := NewConfigTable()
	models := []string{"openai/gpt-4-turbo", "openai/gpt-3.5-turbo"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			table.UpdateModel(RoleWriter, models[i%2])
		}(i)
		go func() {
			defer wg.Done()
			cfg, err := table.GetConfig(RoleWriter)
			if err != nil {
				t.Errorf("GetConfig failed: %v", err)
				return
			}
			// A reader must never observe a half-updated record.
			if cfg.Role != RoleWriter || cfg.SystemPrompt != writerPrompt {
				t.Errorf("inconsistent config observed: %+v", cfg)
			}
		}()
	}
	wg.Wait()
}
