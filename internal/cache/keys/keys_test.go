package keys

import (
	"regexp"
	"testing"
	"time"
	"unicode"

	"github.com/mohammed-shakir/gdelt-event-gateway/internal/core/model"
)

func req() model.FilterRequest {
	d1, d2 := model.NewDate(2014, time.February, 1), model.NewDate(2014, time.February, 2)
	return model.FilterRequest{
		Bounds:   &model.Bounds{Top: 52, Right: 40, Bottom: 44, Left: 22},
		DateFrom: &d1,
		DateTo:   &d2,
		EventIDs: []string{"19", "14"},
		Keywords: []string{"POLICE", "PROTESTER"},
	}
}

func TestResponse_Determinism(t *testing.T) {
	k1 := Response("gdelt_Ukraine:gdelt", req())
	k2 := Response("gdelt_Ukraine:gdelt", req())
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^events:gdelt_Ukraine:gdelt:f=[0-9a-f]{16}$`).MatchString(k1) {
		t.Fatalf("unexpected key shape: %s", k1)
	}
}

func TestResponse_EquivalentRequestsShareKey(t *testing.T) {
	a := req()
	b := req()
	b.EventIDs = []string{" 14", "19", "19", ""}
	b.Keywords = []string{"PROTESTER", "POLICE"}
	zero, last := 0, 23
	b.HourFrom, b.HourTo = &zero, &last
	if Response("l", a) != Response("l", b) {
		t.Fatalf("equivalent requests differ:\n%s\n%s", Canonical(a), Canonical(b))
	}
}

func TestResponse_DifferentRequestsDiffer(t *testing.T) {
	a := req()
	b := req()
	b.Keywords = []string{"police"}
	c := req()
	c.Bounds = &model.Bounds{Top: 52, Right: 40, Bottom: 44, Left: 22.5}
	if Response("l", a) == Response("l", b) || Response("l", a) == Response("l", c) {
		t.Fatal("distinct requests must not share a key")
	}
	if Response("l1", a) == Response("l2", a) {
		t.Fatal("layer must be part of the key")
	}
}

func TestIndexKeys_ASCIIOnly(t *testing.T) {
	k := CellSet(" gdelt Ukraine:gdelt ", 3, "831e24fffffffff")
	if k != "idx:gdelt_Ukraine:gdelt:3:831e24fffffffff" {
		t.Fatalf("CellSet=%s", k)
	}
	for _, r := range LayerSet("gdélt:雪") {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q", r)
		}
	}
}
