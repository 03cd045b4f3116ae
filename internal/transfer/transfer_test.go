package transfer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mj1618/uitransfer/internal/metrics"
	"github.com/mj1618/uitransfer/internal/model"
)

// genSnapshot builds windows trees of the given depth and fanout. Class
// names repeat across nodes so the string pool has work to do.
func genSnapshot(windows, depth, fanout int) *model.Snapshot {
	snap := model.NewSnapshot()
	seq := int32(0)
	for w := 0; w < windows; w++ {
		root := snap.NewWindow(int32(w*10), 0, 1080, 2400, fmt.Sprintf("window-%d", w), int32(w))
		fill(root, depth, fanout, &seq)
	}
	return snap
}

func fill(b model.Builder, depth, fanout int, seq *int32) {
	*seq++
	id := *seq
	classes := []string{"android.widget.FrameLayout", "android.widget.TextView", "android.widget.Button"}
	b.SetClassName(classes[int(id)%len(classes)])
	if id%2 == 0 {
		b.SetID(id, "com.example", "id", fmt.Sprintf("view_%d", id%5))
	}
	b.SetDimens(id, id*2, 0, id%3, 100+id, 40000*(id%4))
	b.SetState(model.StateEnabled | model.StateVisible)
	if id%3 == 0 {
		b.SetText(model.NewText(fmt.Sprintf("label %d", id), 14))
	}
	if id%7 == 0 {
		b.SetContentDescription("described")
		b.SetAlpha(0.5)
	}
	if depth == 0 {
		return
	}
	b.SetChildCount(fanout)
	for i := 0; i < fanout; i++ {
		fill(b.NewChild(i), depth-1, fanout, seq)
	}
}

func transferAll(t *testing.T, snap *model.Snapshot, opts ...Option) (*model.Snapshot, *Registry) {
	t.Helper()
	reg := NewRegistry(opts...)
	first, err := reg.Begin(snap)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, err := Read(context.Background(), first, reg, opts...)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return got, reg
}

func TestRoundTrip_ChunkSizes(t *testing.T) {
	shapes := []struct{ windows, depth, fanout int }{
		{0, 0, 0},
		{1, 0, 0},
		{1, 1, 2},
		{2, 3, 3},
		{3, 6, 2},
	}
	for _, shape := range shapes {
		for _, size := range []int{1, 7, 64, 1024, DefaultChunkSize} {
			name := fmt.Sprintf("w%d_d%d_f%d/size%d", shape.windows, shape.depth, shape.fanout, size)
			t.Run(name, func(t *testing.T) {
				snap := genSnapshot(shape.windows, shape.depth, shape.fanout)
				got, reg := transferAll(t, snap, WithChunkSize(size))
				if !reflect.DeepEqual(got.Windows, snap.Windows) {
					t.Fatalf("decoded snapshot differs from source")
				}
				if reg.Len() != 0 {
					t.Errorf("%d producers left registered", reg.Len())
				}
			})
		}
	}
}

func TestRoundTrip_DeepTree(t *testing.T) {
	snap := model.NewSnapshot()
	b := snap.NewWindow(0, 0, 10, 10, "", 0)
	for i := 0; i < 5000; i++ {
		b.SetClassName("android.widget.FrameLayout")
		b.SetChildCount(1)
		b = b.NewChild(0)
	}
	got, _ := transferAll(t, snap, WithChunkSize(512))
	if got.NodeCount() != 5001 {
		t.Fatalf("nodes = %d, want 5001", got.NodeCount())
	}
	if !reflect.DeepEqual(got.Windows, snap.Windows) {
		t.Fatal("deep tree differs after transfer")
	}
}

func TestTransfer_TwoChildrenThreeChunks(t *testing.T) {
	snap := model.NewSnapshot()
	root := snap.NewWindow(0, 0, 100, 100, "main", 0)
	root.SetID(5, "p", "id", "x")
	root.SetDimens(10, 10, 0, 0, 100, 50)
	root.SetChildCount(2)

	reg := NewRegistry(WithChunkSize(1))
	p, err := reg.Start(snap)
	if err != nil {
		t.Fatal(err)
	}
	data, more, err := p.NextChunk()
	if err != nil {
		t.Fatal(err)
	}
	chunks := [][]byte{data}
	for more {
		data, err = reg.RequestMore(context.Background(), p.Handle())
		if err != nil {
			t.Fatal(err)
		}
		chunks = append(chunks, data)
		more = !p.Finished()
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}

	i := 0
	got, err := Read(context.Background(), chunks[0], TransportFunc(func(context.Context, Handle) ([]byte, error) {
		i++
		return chunks[i], nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	r := got.Windows[0].Root
	if r.ID != 5 || r.IDEntry != "x" || r.IDType != "id" || r.IDPackage != "p" {
		t.Errorf("root id = %d %q %q %q", r.ID, r.IDEntry, r.IDType, r.IDPackage)
	}
	if r.Bounds() != [4]int{10, 10, 100, 50} {
		t.Errorf("root bounds = %v", r.Bounds())
	}
	if len(r.Children) != 2 {
		t.Fatalf("children = %d", len(r.Children))
	}
	for _, c := range r.Children {
		if c.ID != model.NoID || c.IDEntry != "" {
			t.Errorf("child should have no id, got %d %q", c.ID, c.IDEntry)
		}
	}
}

func TestTransfer_SuspendedProducerResumesAfterPause(t *testing.T) {
	a := genSnapshot(2, 3, 3)
	b := genSnapshot(1, 4, 2)
	reg := NewRegistry(WithChunkSize(32))

	pa, _ := reg.Start(a)
	pb, _ := reg.Start(b)
	firstA, moreA, err := pa.NextChunk()
	if err != nil || !moreA {
		t.Fatalf("first chunk of a: more=%v err=%v", moreA, err)
	}
	firstB, moreB, err := pb.NextChunk()
	if err != nil || !moreB {
		t.Fatalf("first chunk of b: more=%v err=%v", moreB, err)
	}
	if reg.Len() != 2 {
		t.Fatalf("registered = %d, want 2", reg.Len())
	}

	time.Sleep(10 * time.Millisecond)

	// Drain b fully before touching a again.
	gotB, err := Read(context.Background(), firstB, reg)
	if err != nil {
		t.Fatal(err)
	}
	gotA, err := Read(context.Background(), firstA, reg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gotA.Windows, a.Windows) || !reflect.DeepEqual(gotB.Windows, b.Windows) {
		t.Fatal("interleaved transfers corrupted each other")
	}
	if !pa.Finished() || !pb.Finished() {
		t.Error("producers should be finished")
	}
	if reg.Len() != 0 {
		t.Errorf("registered = %d, want 0", reg.Len())
	}
}

func TestTransfer_ChunkBodyNeverFarExceedsLimit(t *testing.T) {
	snap := genSnapshot(1, 5, 3)
	limit := 200
	reg := NewRegistry(WithChunkSize(limit))
	p, _ := reg.Start(snap)
	data, more, err := p.NextChunk()
	for {
		if err != nil {
			t.Fatal(err)
		}
		// one node past the limit plus framing
		if len(data) > limit+512 {
			t.Errorf("chunk of %d bytes for limit %d", len(data), limit)
		}
		if !more {
			break
		}
		data, err = reg.RequestMore(context.Background(), p.Handle())
		more = !p.Finished()
	}
	st := p.Stats()
	if st.Nodes != snap.NodeCount() {
		t.Errorf("stats nodes = %d, want %d", st.Nodes, snap.NodeCount())
	}
	if st.Windows != 1 || st.Chunks < 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestTransfer_NoWindows(t *testing.T) {
	reg := NewRegistry()
	first, err := reg.Begin(model.NewSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 4 || binary.BigEndian.Uint32(first) != 0 {
		t.Fatalf("first chunk = %x, want a bare zero count", first)
	}
	got, err := Read(context.Background(), first, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Windows) != 0 {
		t.Errorf("windows = %d", len(got.Windows))
	}
}

func TestTransfer_ReadinessTimeoutSendsEmptySnapshot(t *testing.T) {
	snap := model.NewSnapshot()
	root := snap.NewWindow(0, 0, 10, 10, "", 0)
	root.SetChildCount(1)
	_ = root.AsyncNewChild(0) // never committed

	prom := prometheus.NewRegistry()
	m := metrics.NewTransfer(prom)
	reg := NewRegistry(WithReadyTimeout(20*time.Millisecond), WithMetrics(m))
	p, _ := reg.Start(snap)

	start := time.Now()
	first, more, err := p.NextChunk()
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("producer did not wait for the timeout")
	}
	if more || len(first) != 4 || binary.BigEndian.Uint32(first) != 0 {
		t.Fatalf("first chunk = %x more=%v, want empty snapshot", first, more)
	}
	if !p.Stats().Empty {
		t.Error("stats should flag the empty snapshot")
	}
	got, err := Read(context.Background(), first, reg)
	if err != nil || len(got.Windows) != 0 {
		t.Fatalf("read = %v, %v", got, err)
	}
	want := `
# HELP uitransfer_readiness_timeouts_total Snapshots sent empty because async subtrees never committed.
# TYPE uitransfer_readiness_timeouts_total counter
uitransfer_readiness_timeouts_total 1
`
	if err := testutil.GatherAndCompare(prom, strings.NewReader(want), "uitransfer_readiness_timeouts_total"); err != nil {
		t.Error(err)
	}
}

func TestTransfer_WaitsForAsyncCommit(t *testing.T) {
	snap := model.NewSnapshot()
	root := snap.NewWindow(0, 0, 10, 10, "", 0)
	root.SetChildCount(1)
	child := root.AsyncNewChild(0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		child.SetClassName("android.webkit.WebView")
		child.Commit()
	}()

	got, _ := transferAll(t, snap, WithReadyTimeout(2*time.Second))
	if c := got.Windows[0].Root.Children[0]; c.ClassName != "android.webkit.WebView" {
		t.Errorf("async child class = %q", c.ClassName)
	}
}

func TestTransfer_AsyncChildMutatedUntilCommit(t *testing.T) {
	snap := model.NewSnapshot()
	root := snap.NewWindow(0, 0, 10, 10, "", 0)
	root.SetChildCount(1)
	child := root.AsyncNewChild(0)

	started := make(chan struct{})
	go func() {
		close(started)
		for i := 0; i < 200; i++ {
			child.SetTransformation([9]float32{1, 0, float32(i), 0, 1, 0, 0, 0, 1})
			child.SetChildCount(i % 3)
		}
		child.SetTransformation([9]float32{1, 0, 7, 0, 1, 0, 0, 0, 1})
		child.SetChildCount(2)
		child.Commit()
	}()
	<-started

	got, _ := transferAll(t, snap, WithReadyTimeout(5*time.Second))
	c := got.Windows[0].Root.Children[0]
	if len(c.Children) != 2 {
		t.Errorf("async child has %d children, want 2", len(c.Children))
	}
	if len(c.Matrix) != 9 || c.Matrix[2] != 7 {
		t.Errorf("async child matrix = %v", c.Matrix)
	}
}

func TestTransfer_InvalidatedProducerYieldsCorrupt(t *testing.T) {
	snap := genSnapshot(1, 3, 3)
	reg := NewRegistry(WithChunkSize(16))
	p, _ := reg.Start(snap)
	first, more, err := p.NextChunk()
	if err != nil || !more {
		t.Fatalf("more=%v err=%v", more, err)
	}
	reg.Invalidate(p.Handle())

	_, err = Read(context.Background(), first, reg)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("invalidated producer still registered")
	}
}

func TestRegistry_DiscardForgetsSnapshotProducers(t *testing.T) {
	a := genSnapshot(1, 3, 3)
	b := genSnapshot(1, 3, 3)
	reg := NewRegistry(WithChunkSize(16))
	pa1, _ := reg.Start(a)
	pa2, _ := reg.Start(a)
	pb, _ := reg.Start(b)
	for _, p := range []*Producer{pa1, pa2, pb} {
		if _, more, err := p.NextChunk(); err != nil || !more {
			t.Fatalf("more=%v err=%v", more, err)
		}
	}
	if reg.Len() != 3 {
		t.Fatalf("registered = %d", reg.Len())
	}

	reg.Discard(a)
	if reg.Len() != 1 {
		t.Fatalf("registered after discard = %d, want 1", reg.Len())
	}
	if _, err := reg.RequestMore(context.Background(), pa1.Handle()); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("discarded handle: %v", err)
	}
	if data, _, _ := pa2.NextChunk(); data != nil {
		t.Error("invalidated producer wrote data")
	}
	if _, err := reg.RequestMore(context.Background(), pb.Handle()); err != nil {
		t.Errorf("unrelated producer: %v", err)
	}
}

func TestRegistry_UnknownHandle(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.RequestMore(context.Background(), "missing"); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("expected ErrUnknownHandle, got %v", err)
	}
}

func TestRead_TransportFailure(t *testing.T) {
	snap := genSnapshot(1, 2, 3)
	reg := NewRegistry(WithChunkSize(8))
	first, err := reg.Begin(snap)
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("channel closed")
	_, err = Read(context.Background(), first, TransportFunc(func(context.Context, Handle) ([]byte, error) {
		return nil, boom
	}))
	if !errors.Is(err, ErrTransport) || !errors.Is(err, boom) {
		t.Fatalf("expected transport error wrapping cause, got %v", err)
	}
}

func TestRead_UnknownHandleIsTransportFailure(t *testing.T) {
	snap := genSnapshot(1, 2, 3)
	first, err := NewRegistry(WithChunkSize(8)).Begin(snap)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Read(context.Background(), first, NewRegistry())
	if !errors.Is(err, ErrTransport) || !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("got %v", err)
	}
}

func TestRead_CanceledContext(t *testing.T) {
	snap := genSnapshot(1, 2, 3)
	reg := NewRegistry(WithChunkSize(8))
	first, err := reg.Begin(snap)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Read(ctx, first, reg); !errors.Is(err, ErrTransport) || !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func singleChunk(t *testing.T) []byte {
	t.Helper()
	first, err := NewRegistry().Begin(genSnapshot(1, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	return first
}

func TestRead_SentinelMismatchIsCorrupt(t *testing.T) {
	data := singleChunk(t)
	// count:4, pool count:4, then the window sentinel
	binary.BigEndian.PutUint32(data[8:], 0x33333333)
	if _, err := Read(context.Background(), data, nil); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRead_TruncatedIsCorrupt(t *testing.T) {
	data := singleChunk(t)
	for cut := 1; cut < len(data); cut += 5 {
		if _, err := Read(context.Background(), data[:len(data)-cut], nil); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("cut %d: expected ErrCorrupt, got %v", cut, err)
		}
	}
}

func TestRead_TrailingBytesAreCorrupt(t *testing.T) {
	data := append(singleChunk(t), 0, 0, 0, 0)
	if _, err := Read(context.Background(), data, nil); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRead_NegativeWindowCount(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if _, err := Read(context.Background(), data, nil); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRead_SuspensionWithoutTransport(t *testing.T) {
	first, err := NewRegistry(WithChunkSize(8)).Begin(genSnapshot(1, 2, 3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Read(context.Background(), first, nil); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestTransfer_Metrics(t *testing.T) {
	prom := prometheus.NewRegistry()
	m := metrics.NewTransfer(prom)
	snap := genSnapshot(1, 2, 3)
	got, _ := transferAll(t, snap, WithChunkSize(64), WithMetrics(m))

	want := fmt.Sprintf(`
# HELP uitransfer_nodes_total Nodes encoded or decoded.
# TYPE uitransfer_nodes_total counter
uitransfer_nodes_total{side="consumer"} %d
uitransfer_nodes_total{side="producer"} %d
`, got.NodeCount(), snap.NodeCount())
	if err := testutil.GatherAndCompare(prom, strings.NewReader(want), "uitransfer_nodes_total"); err != nil {
		t.Error(err)
	}
}
