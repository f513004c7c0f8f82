package rxtest

import (
	"bytes"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/sebdah/goldie/v2"

	"github.com/xinjiayu/rxgo/v2"
)

var traceJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// TraceEntry 轨迹中的一行
type TraceEntry struct {
	Kind  string `json:"kind"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// EntryOf 把通知转换成轨迹行
func EntryOf[T any](notification rxgo.SubscriberNotification[T]) TraceEntry {
	entry := TraceEntry{Kind: notification.Kind.String()}
	switch notification.Kind {
	case rxgo.KindNext:
		entry.Value = notification.Value
	case rxgo.KindError:
		if notification.Err != nil {
			entry.Error = notification.Err.Error()
		}
	case rxgo.KindTick:
		entry.Value = notification.Tick.Now.String()
	}
	return entry
}

// EncodeTrace 把通知序列编码成 JSON 行，每个通知一行，以换行结尾
func EncodeTrace[T any](notifications []rxgo.SubscriberNotification[T]) ([]byte, error) {
	var buf bytes.Buffer
	for _, notification := range notifications {
		line, err := traceJSON.Marshal(EntryOf(notification))
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DecodeTrace 解析 EncodeTrace 的输出
func DecodeTrace(data []byte) ([]TraceEntry, error) {
	var entries []TraceEntry
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry TraceEntry
		if err := traceJSON.Unmarshal(line, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AssertGolden 与 testdata/golden/<name>.golden 比对，使用 -update 重新生成
func AssertGolden(t *testing.T, name string, trace []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, trace)
}

// AssertTrace 编码收集器的全部通知并与 golden 文件比对
func AssertTrace[T any](t *testing.T, name string, collector *NotificationCollector[T]) {
	t.Helper()
	trace, err := EncodeTrace(collector.Notifications())
	if err != nil {
		t.Fatalf("failed to encode trace: %v", err)
	}
	AssertGolden(t, name, trace)
}
