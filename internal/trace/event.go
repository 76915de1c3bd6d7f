package trace

import "time"

// Kind tells begin, end and point events apart.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
)

var kindNames = map[Kind]string{KindSpanBegin: "begin", KindSpanEnd: "end", KindPoint: "point"}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Scope is the granularity of an event. Smaller values are coarser.
type Scope uint8

const (
	ScopeCommand  Scope = iota + 1 // one CLI command
	ScopeCategory                  // one check category or diff phase
	ScopeFile                      // one input file
	ScopeEntry                     // one diagnostic or audit entry
)

var scopeNames = map[Scope]string{
	ScopeCommand:  "command",
	ScopeCategory: "category",
	ScopeFile:     "file",
	ScopeEntry:    "entry",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "unknown"
}

// Event is one trace record. Seq is assigned by the tracer that stores it.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for root spans
	Name     string
	Detail   string
	Extra    map[string]string
}
