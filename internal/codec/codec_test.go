package codec

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/strpool"
	"github.com/mj1618/uitransfer/internal/wire"
)

// roundTrip encodes n in a fresh pool and decodes it back.
func roundTrip(t *testing.T, n *model.Node) (*model.Node, int, []byte) {
	t.Helper()
	enc := wire.NewEncoder(0)
	pw := strpool.NewWriter(enc)
	wrote := EncodeNode(enc, pw, n)
	pw.Close()

	dec := wire.NewDecoder(enc.Bytes())
	pr, err := strpool.NewReader(dec)
	if err != nil {
		t.Fatal(err)
	}
	got, count, err := DecodeNode(dec, pr)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if count != wrote {
		t.Errorf("child count decoded %d, encoded %d", count, wrote)
	}
	if err := pr.Close(); err != nil {
		t.Errorf("pool close: %v", err)
	}
	if dec.Remaining() != 0 {
		t.Errorf("%d unread bytes", dec.Remaining())
	}
	return got, count, enc.Bytes()
}

func fullNode() *model.Node {
	n := model.NewNode()
	n.ClassName = "android.widget.EditText"
	n.ID = 0x7f0a0012
	n.IDPackage = "com.example"
	n.IDType = "id"
	n.IDEntry = "search"
	n.X, n.Y, n.Width, n.Height = 40000, -3, 200, 48
	n.ScrollX, n.ScrollY = 0, 120
	n.Matrix = []float32{1, 0, 10, 0, 1, 20, 0, 0, 1}
	n.Elevation = 4.5
	n.Alpha = 0.25
	n.State = model.StateEnabled | model.StateFocusable | model.StateFocused
	n.ContentDescription = "Search field"
	n.Text = &model.Text{
		Text: "query", Size: 14, Style: 1, Color: 0x112233,
		BackgroundColor: 0x445566, SelectionStart: 1, SelectionEnd: 3,
		LineCharOffsets: []int32{0, 5}, LineBaselines: []int32{12, 30},
		Hint: "Search",
	}
	n.Extras = []byte{0xCA, 0xFE}
	return n
}

func TestNode_FullRoundTrip(t *testing.T) {
	in := fullNode()
	got, _, _ := roundTrip(t, in)
	if !reflect.DeepEqual(in, got) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, in)
	}
}

func TestNode_DefaultsWhenFlagsUnset(t *testing.T) {
	got, count, _ := roundTrip(t, model.NewNode())
	if count != 0 || got.Children != nil {
		t.Errorf("children = %v, count %d", got.Children, count)
	}
	if got.ID != model.NoID {
		t.Errorf("id = %d, want NoID", got.ID)
	}
	if got.Alpha != 1 {
		t.Errorf("alpha = %v, want 1", got.Alpha)
	}
	if got.Text != nil || got.Matrix != nil || got.Extras != nil {
		t.Errorf("optional fields should be absent: %+v", got)
	}
}

func TestNode_ChildCountOnly(t *testing.T) {
	n := model.NewNode()
	n.Children = []*model.Node{model.NewNode(), model.NewNode(), model.NewNode()}
	got, count, _ := roundTrip(t, n)
	if count != 3 || len(got.Children) != 3 {
		t.Fatalf("count = %d, len = %d, want 3", count, len(got.Children))
	}
	for i, c := range got.Children {
		if c != nil {
			t.Errorf("child %d should be left for the traversal layer", i)
		}
	}
}

func TestNode_ZeroIDWritesNoNames(t *testing.T) {
	n := model.NewNode()
	n.IDEntry = "ignored"
	n.IDType = "id"
	n.IDPackage = "p"
	got, _, b := roundTrip(t, n)
	if Flags(n)&FlagHasID != 0 {
		t.Error("id 0 should not set HAS_ID")
	}
	if got.IDEntry != "" || got.IDType != "" || got.IDPackage != "" {
		t.Errorf("names leaked for id 0: %+v", got)
	}
	// pool count header says nothing was interned
	if d := wire.NewDecoder(b); d.Int32() != 0 {
		t.Error("no strings should be pooled")
	}
}

func TestNode_EntryImpliesTypeAndPackageSlots(t *testing.T) {
	n := model.NewNode()
	n.ID = 5
	n.IDEntry = "x"
	enc := wire.NewEncoder(0)
	pw := strpool.NewWriter(enc)
	EncodeNode(enc, pw, n)
	pw.Close()

	dec := wire.NewDecoder(enc.Bytes())
	dec.Int32()  // pool count
	dec.Int32()  // class name ref (null)
	dec.Uint32() // flags
	if id := dec.Int32(); id != 5 {
		t.Fatalf("id = %d", id)
	}
	if ref := dec.Int32(); ref != -2 {
		t.Fatalf("entry ref = %d, want new string", ref)
	}
	_ = dec.String()
	if ref := dec.Int32(); ref != -1 {
		t.Errorf("type slot = %d, want null ref", ref)
	}
	if ref := dec.Int32(); ref != -1 {
		t.Errorf("package slot = %d, want null ref", ref)
	}
	if err := dec.Err(); err != nil {
		t.Fatal(err)
	}
}

func TestNode_NullEntrySkipsTypeAndPackage(t *testing.T) {
	n := model.NewNode()
	n.ID = 9
	n.IDType = "id"
	n.IDPackage = "p"
	got, _, _ := roundTrip(t, n)
	if got.ID != 9 {
		t.Errorf("id = %d", got.ID)
	}
	if got.IDType != "" || got.IDPackage != "" {
		t.Errorf("type/package should not be written without an entry: %+v", got)
	}
}

func TestFlags_CoordinatePacking(t *testing.T) {
	cases := []struct {
		x, y, w, h int32
		large      bool
	}{
		{0, 0, 0, 0, false},
		{32767, 32767, 32767, 32767, false},
		{10, 10, 100, 50, false},
		{32768, 0, 0, 0, true},
		{0, 32768, 0, 0, true},
		{0, 0, 32768, 0, true},
		{0, 0, 0, 32768, true},
		{-1, 0, 10, 10, true},
	}
	for _, c := range cases {
		n := model.NewNode()
		n.X, n.Y, n.Width, n.Height = c.x, c.y, c.w, c.h
		if got := Flags(n)&FlagHasLargeCoords != 0; got != c.large {
			t.Errorf("coords %v: large = %v, want %v", c, got, c.large)
		}
		back, _, _ := roundTrip(t, n)
		if back.X != c.x || back.Y != c.y || back.Width != c.w || back.Height != c.h {
			t.Errorf("coords %v decoded as %d,%d,%d,%d", c, back.X, back.Y, back.Width, back.Height)
		}
	}
}

func TestCoordinatePacking_Size(t *testing.T) {
	small := model.NewNode()
	small.X, small.Y, small.Width, small.Height = 10, 10, 100, 50
	large := model.NewNode()
	large.X, large.Y, large.Width, large.Height = 10, 10, 100, 50000
	_, _, sb := roundTrip(t, small)
	_, _, lb := roundTrip(t, large)
	if len(lb)-len(sb) != 8 {
		t.Errorf("large coords should cost 8 extra bytes, got %d", len(lb)-len(sb))
	}
}

func TestText_ShortAndLongForms(t *testing.T) {
	simple := model.NewNode()
	simple.Text = model.NewText("hello", 12)
	simple.Text.Color = 0x00FF00
	if f := Flags(simple); f&FlagHasText == 0 || f&FlagHasComplexText != 0 {
		t.Errorf("simple text flags = %#x", f)
	}
	got, _, _ := roundTrip(t, simple)
	if !reflect.DeepEqual(got.Text, simple.Text) {
		t.Errorf("simple text = %+v, want %+v", got.Text, simple.Text)
	}

	complexNode := model.NewNode()
	complexNode.Text = model.NewText("hello", 12)
	complexNode.Text.Hint = "greeting"
	if f := Flags(complexNode); f&FlagHasComplexText == 0 {
		t.Errorf("hint should force long form, flags = %#x", f)
	}
	got, _, _ = roundTrip(t, complexNode)
	if got.Text.Hint != "greeting" || got.Text.BackgroundColor != model.ColorUndefined {
		t.Errorf("complex text = %+v", got.Text)
	}
}

func TestDecode_TruncatedIsCorrupt(t *testing.T) {
	enc := wire.NewEncoder(0)
	pw := strpool.NewWriter(enc)
	EncodeNode(enc, pw, fullNode())
	pw.Close()
	b := enc.Bytes()

	for cut := 1; cut < len(b)-4; cut += 7 {
		dec := wire.NewDecoder(b[:len(b)-cut])
		pr, err := strpool.NewReader(dec)
		if err != nil {
			if !errors.Is(err, wire.ErrCorrupt) {
				t.Fatalf("cut %d: pool error %v", cut, err)
			}
			continue
		}
		if _, _, err := DecodeNode(dec, pr); !errors.Is(err, wire.ErrCorrupt) {
			t.Errorf("cut %d: expected ErrCorrupt, got %v", cut, err)
		}
	}
}

func TestDecode_UnknownFlagsAreCorrupt(t *testing.T) {
	enc := wire.NewEncoder(0)
	enc.Int32(0)  // pool count
	enc.Int32(-1) // null class name
	enc.Uint32(1 << 31)
	dec := wire.NewDecoder(enc.Bytes())
	pr, err := strpool.NewReader(dec)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := DecodeNode(dec, pr); !errors.Is(err, wire.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestWindow_RoundTrip(t *testing.T) {
	in := &model.Window{X: -10, Y: 20, Width: 1080, Height: 2400, Title: "Settings", DisplayID: 2}
	enc := wire.NewEncoder(0)
	EncodeWindow(enc, in)
	got, err := DecodeWindow(wire.NewDecoder(enc.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, got) {
		t.Errorf("window = %+v, want %+v", got, in)
	}
}
