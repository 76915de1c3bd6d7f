// Package schema holds the required-field vocabulary shared with diagnostic
// producers. Every list lives in one versioned registry so categories cannot
// silently drift apart on a shared logical field.
package schema

import (
	"slices"

	"diagaudit/internal/resolve"
)

// Version identifies the field vocabulary. Bump it together with the
// producer's schema_version whenever a list below changes.
const Version = "audit-fields.v3"

// Category names.
const (
	Iterator            = "iterator"
	Basic               = "basic"
	Typeclass           = "typeclass"
	TypeclassDictionary = "typeclass.dictionary"
	Bridge              = "ffi_bridge"
	Parser              = "parser"
	Runconfig           = "runconfig"
	Capability          = "capability"
)

// ExtensionKey is an extension-side key with optional aliases.
type ExtensionKey struct {
	Name       string
	Aliases    []string
	AllowEmpty bool
}

// Category is the wire contract of one check category.
type Category struct {
	Name string
	// Fields are resolved through resolve.Missing.
	Fields []resolve.RequiredField
	// AuditKeys are checked with the strict resolve.HasPath test.
	AuditKeys []string
	// ExtensionKeys are dotted keys under extensions.
	ExtensionKeys []string
}

// RequiredKeys lists the logical names a producer must emit for c.
func (c Category) RequiredKeys() []string {
	if len(c.Fields) > 0 {
		return resolve.Logicals(c.Fields)
	}
	return slices.Clone(c.AuditKeys)
}

var basicFields = []resolve.RequiredField{
	resolve.Field("cli.audit_id", "cli.audit_id", "audit_id"),
	resolve.Field("cli.change_set", "cli.change_set", "change_set"),
	resolve.Field("schema.version"),
}

var iteratorFields = append(slices.Clone(basicFields),
	resolve.Field("effect.stage.required"),
	resolve.Field("effect.stage.actual"),
	resolve.Field("effect.capability"),
	resolve.Field("effect.capability_descriptor", "effect.capability_descriptor", "effect.capability_metadata").Empty(),
	resolve.Field("effect.handler_stack"),
	resolve.Field("effect.unhandled_operations").Empty().Null(),
	resolve.Field("effect.stage.iterator.required"),
	resolve.Field("effect.stage.iterator.actual"),
	resolve.Field("effect.stage.iterator.kind"),
	resolve.Field("effect.stage.iterator.capability"),
	resolve.Field("effect.stage.iterator.source"),
	resolve.Field("bridge.audit_pass_rate"),
)

// Extension vocabulary of the iterator category.
var (
	EffectStageKeys    = []string{"required", "actual"}
	EffectIteratorKeys = []string{"required", "actual", "kind", "capability", "source"}
	EffectExtraKeys    = []ExtensionKey{
		{Name: "residual"},
		{Name: "handler_stack"},
		{Name: "unhandled_operations", AllowEmpty: true},
		{Name: "capability_descriptor", Aliases: []string{"capability_descriptor", "metadata"}},
	}
	ParseKeys = []string{"input_name", "stage_trace"}
)

// Typeclass extension vocabulary.
var (
	TypeclassScalarKeys = []string{"trait", "constraint", "resolution_state"}
	TypeclassListKeys   = []string{"type_args", "pending", "generalized_typevars", "candidates"}
	DictionaryFields    = []string{"kind", "identifier", "repr"}
	GraphFields         = []string{"export_dot"}
)

// BridgePrefix selects ffi bridge diagnostics by code.
const BridgePrefix = "ffi.contract."

// Parser runconfig vocabulary.
var (
	RunconfigSwitches   = []string{"packrat", "left_recursion", "trace", "merge_warnings"}
	RunconfigExtensions = []string{"lex", "recover", "stream"}
)

// Capability field names compared across storage locations.
const (
	RequiredCapabilities = "required_capabilities"
	ActualCapabilities   = "actual_capabilities"
)

var registry = map[string]Category{
	Basic: {
		Name:   Basic,
		Fields: basicFields,
	},
	Iterator: {
		Name:   Iterator,
		Fields: iteratorFields,
	},
	Typeclass: {
		Name: Typeclass,
		AuditKeys: []string{
			"typeclass.trait",
			"typeclass.type_args",
			"typeclass.constraint",
			"typeclass.resolution_state",
			"typeclass.dictionary.kind",
			"typeclass.pending",
			"typeclass.generalized_typevars",
			"typeclass.candidates",
		},
	},
	TypeclassDictionary: {
		Name: TypeclassDictionary,
		AuditKeys: []string{
			"extensions.typeclass.dictionary.kind",
			"extensions.typeclass.dictionary.identifier",
			"extensions.typeclass.dictionary.repr",
			"typeclass.dictionary.kind",
			"typeclass.dictionary.identifier",
			"typeclass.dictionary.repr",
		},
	},
	Bridge: {
		Name: Bridge,
		AuditKeys: []string{
			"audit_id",
			"change_set",
			"cli.audit_id",
			"cli.change_set",
			"schema.version",
			"bridge.audit_pass_rate",
			"bridge.status",
			"bridge.target",
			"bridge.arch",
			"bridge.abi",
			"bridge.ownership",
			"bridge.extern_symbol",
			"bridge.platform",
			"bridge.return.ownership",
			"bridge.return.status",
			"bridge.return.wrap",
			"bridge.return.release_handler",
			"bridge.return.rc_adjustment",
		},
		ExtensionKeys: []string{
			"bridge.target",
			"bridge.ownership",
			"bridge.abi",
			"bridge.platform",
			"bridge.audit_pass_rate",
			"bridge.return.ownership",
			"bridge.return.status",
			"bridge.return.wrap",
			"bridge.return.release_handler",
			"bridge.return.rc_adjustment",
		},
	},
	Parser: {
		Name:      Parser,
		AuditKeys: []string{"expected", "expected.alternatives"},
	},
	Runconfig: {
		Name:          Runconfig,
		AuditKeys:     RunconfigSwitches,
		ExtensionKeys: RunconfigExtensions,
	},
	Capability: {
		Name:      Capability,
		AuditKeys: []string{RequiredCapabilities, ActualCapabilities},
	},
}

// Lookup returns the category registered under name.
func Lookup(name string) (Category, bool) {
	c, ok := registry[name]
	return c, ok
}

// MustLookup panics on unknown names; used for the built-in categories.
func MustLookup(name string) Category {
	c, ok := registry[name]
	if !ok {
		panic("schema: unknown category " + name)
	}
	return c
}

// Names returns every registered category name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
