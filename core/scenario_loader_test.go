package core

import (
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/gravity-simulator/kb"
)

func TestLoadScenario_PopulatesKB(t *testing.T) {
	jsonData := `
{
  "name": "sun-earth-moon",
  "epoch": "2021-10-02T00:00:00Z",
  "units": { "distance": "km", "velocity": "km/s" },
  "bodies": [
    {
      "id": "sun",
      "name": "Sun",
      "mass": 1.98892e30,
      "radius": 30,
      "color": "#ffae42",
      "reference": true
    },
    {
      "id": "earth",
      "position": [-149600000, 0],
      "velocity": [0, 29.783],
      "mass": 5.9742e24,
      "radius": 16,
      "satellites": [
        {
          "id": "moon",
          "position": [-384400, 0],
          "velocity": [0, 1.022],
          "mass": 7.342e22,
          "radius": 4
        },
        {
          "id": "iss",
          "mass": 420000,
          "radius": 1,
          "tle": [
            "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
            "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
          ]
        }
      ]
    }
  ]
}
`
	sc, err := LoadScenario(strings.NewReader(jsonData))
	if err != nil {
		t.Fatalf("LoadScenario returned error: %v", err)
	}
	if sc.Name != "sun-earth-moon" {
		t.Fatalf("name = %q", sc.Name)
	}
	if !sc.Epoch.Equal(time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("epoch = %v", sc.Epoch)
	}

	store := kb.NewKnowledgeBase()
	if err := sc.Build(store, BuildOptions{MaxOrbitPoints: 500}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if store.Len() != 4 {
		t.Fatalf("expected 4 bodies, got %d", store.Len())
	}

	sun := store.GetBody("sun")
	if sun == nil || sun.Name != "Sun" || !sun.IsReference {
		t.Fatalf("sun not loaded correctly: %v", sun)
	}
	if sun.Color != (color.RGBA{255, 174, 66, 255}) {
		t.Fatalf("sun color = %v", sun.Color)
	}
	if store.Reference() != sun {
		t.Fatalf("sun should be the reference body")
	}

	earth := store.GetBody("earth")
	if earth.Position != (r2.Vec{X: -AU}) || earth.Velocity != (r2.Vec{Y: 29783}) {
		t.Fatalf("earth state not converted to SI: %v / %v", earth.Position, earth.Velocity)
	}
	if earth.Name != "earth" || earth.Color != ColorWhite {
		t.Fatalf("earth defaults not applied: name=%q color=%v", earth.Name, earth.Color)
	}
	if earth.Orbit.Max() != 500 {
		t.Fatalf("orbit limit = %d, want 500", earth.Orbit.Max())
	}

	moon := store.GetBody("moon")
	if moon.Parent() != earth {
		t.Fatalf("moon parent = %v", moon.Parent())
	}
	if !scalar.EqualWithinRel(moon.Position.X, -AU-3.844e8, 1e-12) {
		t.Fatalf("moon x = %g, want earth-relative offset", moon.Position.X)
	}
	if !scalar.EqualWithinRel(moon.Velocity.Y, 29783+1022, 1e-12) {
		t.Fatalf("moon vy = %g, want earth velocity plus 1022", moon.Velocity.Y)
	}

	iss := store.GetBody("iss")
	if iss.Parent() != earth {
		t.Fatalf("iss parent = %v", iss.Parent())
	}
	if d := Distance(iss, earth); d <= 0 || d > 7.0e6 {
		t.Fatalf("iss should sit in low Earth orbit around earth, got %g m", d)
	}

	top := store.TopLevel()
	if len(top) != 2 || top[0] != sun || top[1] != earth {
		t.Fatalf("top-level order = %v", top)
	}
}

func TestLoadScenario_Circular(t *testing.T) {
	jsonData := `
{
  "units": { "distance": "au" },
  "bodies": [
    { "id": "sun", "mass": 1.98892e30, "radius": 30, "reference": true },
    { "id": "earth", "position": [1, 0], "mass": 5.9742e24, "radius": 16, "circular": true }
  ]
}`
	sc, err := LoadScenario(strings.NewReader(jsonData))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if !sc.Epoch.Equal(DefaultEpoch) {
		t.Fatalf("missing epoch should default to %v, got %v", DefaultEpoch, sc.Epoch)
	}
	store := kb.NewKnowledgeBase()
	if err := sc.Build(store, BuildOptions{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	earth := store.GetBody("earth")
	want := math.Sqrt(DefaultG * 1.98892e30 / AU)
	if earth.Velocity.X != 0 || !scalar.EqualWithinRel(earth.Velocity.Y, want, 1e-12) {
		t.Fatalf("circular velocity = %v, want (0, %g)", earth.Velocity, want)
	}
}

func TestLoadScenario_Errors(t *testing.T) {
	cases := map[string]string{
		"bad json":         `{`,
		"unknown field":    `{"bodies": [{"id": "a", "mass": 1, "radius": 1, "spin": 3}]}`,
		"no bodies":        `{"name": "empty"}`,
		"distance unit":    `{"units": {"distance": "parsec"}, "bodies": [{"id": "a", "mass": 1, "radius": 1}]}`,
		"velocity unit":    `{"units": {"velocity": "mph"}, "bodies": [{"id": "a", "mass": 1, "radius": 1}]}`,
		"epoch":            `{"epoch": "yesterday", "bodies": [{"id": "a", "mass": 1, "radius": 1}]}`,
		"empty id":         `{"bodies": [{"mass": 1, "radius": 1}]}`,
		"color":            `{"bodies": [{"id": "a", "mass": 1, "radius": 1, "color": "blue"}]}`,
		"top-level tle":    `{"bodies": [{"id": "a", "mass": 1, "radius": 1, "tle": ["x", "y"]}]}`,
		"nested satellite": `{"bodies": [{"id": "a", "mass": 1, "radius": 1, "satellites": [{"id": "b", "mass": 1, "radius": 1, "satellites": [{"id": "c", "mass": 1, "radius": 1}]}]}]}`,
		"tle line count":   `{"bodies": [{"id": "a", "mass": 1, "radius": 1, "satellites": [{"id": "b", "mass": 1, "radius": 1, "tle": ["x"]}]}]}`,
	}
	for name, data := range cases {
		if _, err := LoadScenario(strings.NewReader(data)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestScenarioBuild_Errors(t *testing.T) {
	noRef := &Scenario{Bodies: []BodySpec{
		{ID: "a", State: StaticState{}, Mass: 1, Radius: 1},
		{ID: "b", State: StaticState{Position: r2.Vec{X: 1}}, Mass: 1, Radius: 1, Circular: true},
	}}
	if err := noRef.Build(kb.NewKnowledgeBase(), BuildOptions{}); err == nil {
		t.Fatalf("expected error for circular orbit without a reference body")
	}

	dup := &Scenario{Bodies: []BodySpec{
		{ID: "a", State: StaticState{}, Mass: 1, Radius: 1},
		{ID: "a", State: StaticState{Position: r2.Vec{X: 1}}, Mass: 1, Radius: 1},
	}}
	if err := dup.Build(kb.NewKnowledgeBase(), BuildOptions{}); !errors.Is(err, kb.ErrBodyExists) {
		t.Fatalf("expected ErrBodyExists, got %v", err)
	}

	badMass := &Scenario{Bodies: []BodySpec{{ID: "a", State: StaticState{}, Mass: 0, Radius: 1}}}
	if err := badMass.Build(kb.NewKnowledgeBase(), BuildOptions{}); err == nil {
		t.Fatalf("expected error for zero mass")
	}

	if err := DefaultScenario().Build(nil, BuildOptions{}); err == nil {
		t.Fatalf("expected error for nil kb")
	}
}

func TestDefaultScenario(t *testing.T) {
	store := kb.NewKnowledgeBase()
	if err := DefaultScenario().Build(store, BuildOptions{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if store.Len() != 5 {
		t.Fatalf("expected 5 bodies, got %d", store.Len())
	}
	if ref := store.Reference(); ref == nil || ref.ID != "sun" {
		t.Fatalf("reference = %v, want sun", ref)
	}
	mercury := store.GetBody("mercury")
	if !scalar.EqualWithinRel(mercury.Position.X, 0.387*AU, 1e-12) {
		t.Fatalf("mercury x = %g", mercury.Position.X)
	}

	moonStore := kb.NewKnowledgeBase()
	if err := EarthMoonScenario().Build(moonStore, BuildOptions{}); err != nil {
		t.Fatalf("Build moon scenario: %v", err)
	}
	if sats := moonStore.GetBody("earth").Satellites(); len(sats) != 1 || sats[0].ID != "moon" {
		t.Fatalf("earth satellites = %v", sats)
	}
}

func TestLoadScenario_SampleFile(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "configs", "earth-moon-iss.json"))
	if err != nil {
		t.Fatalf("open sample scenario: %v", err)
	}
	defer f.Close()

	sc, err := LoadScenario(f)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	store := kb.NewKnowledgeBase()
	if err := sc.Build(store, BuildOptions{MaxOrbitPoints: 1000}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if store.Len() != 7 {
		t.Fatalf("expected 7 bodies, got %d", store.Len())
	}
	earth, moon := store.GetBody("earth"), store.GetBody("moon")
	rel := r2.Sub(moon.Velocity, earth.Velocity)
	want := math.Sqrt(DefaultG * earth.Mass() / Distance(moon, earth))
	if !scalar.EqualWithinRel(r2.Norm(rel), want, 1e-9) {
		t.Fatalf("moon speed relative to earth = %g, want %g", r2.Norm(rel), want)
	}
}
