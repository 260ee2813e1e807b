package results

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"studio/internal/domain"
)

func TestPoolFallbackOrder(t *testing.T) {
	tests := []struct {
		name    string
		ghost   []string
		model   []string
		wantSrc ViewKey
		want    []string
	}{
		{name: "both populated prefers ghost", ghost: []string{"g1", "g2"}, model: []string{"m1"}, wantSrc: GhostMannequin, want: []string{"g1", "g2"}},
		{name: "only model populated", model: []string{"m1"}, wantSrc: ModelShots, want: []string{"m1"}},
		{name: "ghost emptied falls back", ghost: []string{}, model: []string{"m1", "m2"}, wantSrc: ModelShots, want: []string{"m1", "m2"}},
		{name: "neither populated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			if tt.ghost != nil {
				store.Set(GhostMannequin, &ResultSet{URLs: tt.ghost})
			}
			if tt.model != nil {
				store.Set(ModelShots, &ResultSet{URLs: tt.model})
			}
			sel := NewSelector(store, DefaultPolicies())
			pool := sel.Pool(TargetCommon)
			if tt.want == nil {
				if pool != nil {
					t.Fatalf("expected no pool, got %+v", pool)
				}
				return
			}
			if pool == nil {
				t.Fatalf("expected pool from %s", tt.wantSrc)
			}
			if pool.Source != tt.wantSrc || !reflect.DeepEqual(pool.URLs, tt.want) {
				t.Fatalf("pool = %+v", pool)
			}
		})
	}
}

func TestWalkPoolOnlyUsesModelShots(t *testing.T) {
	store := NewStore()
	store.Set(GhostMannequin, &ResultSet{URLs: []string{"g1"}})
	sel := NewSelector(store, DefaultPolicies())
	if pool := sel.Pool(TargetWalk); pool != nil {
		t.Fatalf("walk pool should ignore ghost results, got %+v", pool)
	}
	store.Set(ModelShots, &ResultSet{URLs: []string{"m1"}})
	if pool := sel.Pool(TargetWalk); pool == nil || pool.Source != ModelShots {
		t.Fatalf("walk pool = %+v", pool)
	}
}

func TestSelectBorrowsWithoutMutating(t *testing.T) {
	store := NewStore()
	store.Set(GhostMannequin, &ResultSet{URLs: []string{"g1", "g2"}})
	sel := NewSelector(store, DefaultPolicies())

	art, src, err := sel.Select(TargetCommon, 1)
	if err != nil {
		t.Fatalf("Select error: %v", err)
	}
	if art != "g2" || src != GhostMannequin {
		t.Fatalf("Select = %q from %s", art, src)
	}
	if got := store.Get(GhostMannequin).URLs; !reflect.DeepEqual(got, []string{"g1", "g2"}) {
		t.Fatalf("source set changed: %v", got)
	}
	if pool := sel.Pool(TargetCommon); pool.SelectedIndex != 1 {
		t.Fatalf("selected index = %d, want 1", pool.SelectedIndex)
	}

	pool := sel.Pool(TargetCommon)
	pool.URLs[0] = "mutated"
	if got := store.Get(GhostMannequin).URLs[0]; got != "g1" {
		t.Fatalf("pool aliased the store: %q", got)
	}
}

func TestSelectErrors(t *testing.T) {
	store := NewStore()
	sel := NewSelector(store, DefaultPolicies())
	if _, _, err := sel.Select(TargetCommon, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Select on empty pool error = %v", err)
	}
	store.Set(ModelShots, &ResultSet{URLs: []string{"m1"}})
	if _, _, err := sel.Select(TargetCommon, 3); !errors.Is(err, domain.ErrOutOfRange) {
		t.Fatalf("Select out of range error = %v", err)
	}
	if pool := sel.Pool("unknown"); pool != nil {
		t.Fatalf("unknown target should have no pool")
	}
}

func TestLoadPoliciesOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pools.toml")
	content := `
[[pool]]
target = "common"
sources = [
  { view = "style", sub_view = "model" },
  { view = "style", sub_view = "ghost" },
]

[[pool]]
target = "adcopy"
sources = [{ view = "style", sub_view = "creative" }]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policies: %v", err)
	}
	policies, err := LoadPolicies(path)
	if err != nil {
		t.Fatalf("LoadPolicies error: %v", err)
	}
	sel := NewSelector(NewStore(), policies)
	common, ok := sel.Policy(TargetCommon)
	if !ok || !reflect.DeepEqual(common.Sources, []ViewKey{ModelShots, GhostMannequin}) {
		t.Fatalf("common policy = %+v", common)
	}
	if _, ok := sel.Policy(TargetWalk); !ok {
		t.Fatalf("default walk policy lost")
	}
	if adcopy, ok := sel.Policy("adcopy"); !ok || len(adcopy.Sources) != 1 {
		t.Fatalf("adcopy policy = %+v", adcopy)
	}
}

func TestLoadPoliciesRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.toml")
	content := `
[[pool]]
target = "common"
sources = [
  { view = "style", sub_view = "ghost" },
  { view = "style", sub_view = "ghost" },
]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policies: %v", err)
	}
	if _, err := LoadPolicies(path); err == nil {
		t.Fatalf("expected duplicate source error")
	}
}

func TestLoadPoliciesEmptyPath(t *testing.T) {
	policies, err := LoadPolicies("")
	if err != nil {
		t.Fatalf("LoadPolicies error: %v", err)
	}
	if !reflect.DeepEqual(policies, DefaultPolicies()) {
		t.Fatalf("policies = %+v", policies)
	}
}
