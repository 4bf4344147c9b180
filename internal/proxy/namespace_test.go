package proxy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hostwire/hostwire/internal/eventbus"
)

type fakeCaller struct {
	calledMethod  string
	calledParams  interface{}
	notifyMethod  string
	onEvent       string
	callResult    json.RawMessage
}

func (f *fakeCaller) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	f.calledMethod = method
	f.calledParams = params
	return f.callResult, nil
}

func (f *fakeCaller) Notify(method string, params interface{}) error {
	f.notifyMethod = method
	return nil
}

func (f *fakeCaller) On(event string, fn eventbus.Listener) eventbus.Subscription {
	f.onEvent = event
	return eventbus.Subscription{}
}

func TestNamespace_CallJoinsPath(t *testing.T) {
	fc := &fakeCaller{}
	ns := New(fc, "fs")

	ns.Call(context.Background(), "readFile", nil)
	if fc.calledMethod != "fs.readFile" {
		t.Errorf("method = %s, want fs.readFile", fc.calledMethod)
	}
}

func TestNamespace_SubJoinsPath(t *testing.T) {
	fc := &fakeCaller{}
	ns := New(fc, "fs")
	watch := ns.Sub("watch")

	watch.Call(context.Background(), "start", nil)
	if fc.calledMethod != "fs.watch.start" {
		t.Errorf("method = %s, want fs.watch.start", fc.calledMethod)
	}
}

func TestNamespace_SubIsIdempotent(t *testing.T) {
	fc := &fakeCaller{}
	ns := New(fc, "fs")

	a := ns.Sub("watch")
	b := ns.Sub("watch")
	if a != b {
		t.Error("expected Sub to return the same instance for the same name")
	}
}

func TestNamespace_RootHasNoLeadingSeparator(t *testing.T) {
	fc := &fakeCaller{}
	ns := New(fc, "")

	ns.Call(context.Background(), "ping", nil)
	if fc.calledMethod != "ping" {
		t.Errorf("method = %s, want ping", fc.calledMethod)
	}
}

func TestNamespace_NotifyAndOn(t *testing.T) {
	fc := &fakeCaller{}
	ns := New(fc, "fs")

	ns.Notify("changed", nil)
	if fc.notifyMethod != "fs.changed" {
		t.Errorf("notifyMethod = %s, want fs.changed", fc.notifyMethod)
	}

	ns.On("changed", func(args ...interface{}) {})
	if fc.onEvent != "fs.changed" {
		t.Errorf("onEvent = %s, want fs.changed", fc.onEvent)
	}
}
