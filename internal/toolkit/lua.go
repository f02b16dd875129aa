package toolkit

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/toolrun/internal/platform"
)

// LuaError reports a toolkit.lua document that failed to run or has the
// wrong shape.
type LuaError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *LuaError) Error() string {
	detail := e.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", e.Message, detail)
}

// newSandboxedVM returns a Lua state without the os, io, module loading
// and debug facilities. string, table and math stay available.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()

	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)
	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("debug", lua.LNil)

	return L
}

// decodeLua runs a toolkit.lua document. The script sees a read-only
// "platform" table and must assign a global "toolkit" table shaped like
// the JSON document.
func decodeLua(ctx context.Context, r *Registry, data []byte) (*Document, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if err := platform.InjectPlatformTable(L, r.info); err != nil {
		return nil, fmt.Errorf("inject platform table: %w", err)
	}

	if err := L.DoString(string(data)); err != nil {
		return nil, &LuaError{Message: "Lua error", Detail: err.Error()}
	}

	root, ok := L.GetGlobal("toolkit").(*lua.LTable)
	if !ok {
		return nil, &LuaError{
			Message: "missing or invalid 'toolkit' table",
			Detail:  fmt.Sprintf("expected table, got %s", L.GetGlobal("toolkit").Type()),
		}
	}

	doc := &Document{
		Name:    luaString(root.RawGetString("name")),
		Keyring: luaString(root.RawGetString("keyring")),
		Tools:   map[string]*ToolConfig{},
	}

	tools, ok := root.RawGetString("tools").(*lua.LTable)
	if !ok {
		return doc, nil
	}

	var extractErr error
	tools.ForEach(func(key, value lua.LValue) {
		if extractErr != nil {
			return
		}
		entry, ok := value.(*lua.LTable)
		if !ok || key.Type() != lua.LTString {
			extractErr = &LuaError{
				Message: "invalid tool entry",
				Detail:  fmt.Sprintf("tools[%s] must be a table keyed by name", key.String()),
			}
			return
		}
		doc.Tools[key.String()] = extractTool(entry)
	})
	if extractErr != nil {
		return nil, extractErr
	}

	return doc, nil
}

func extractTool(table *lua.LTable) *ToolConfig {
	cfg := &ToolConfig{
		Description: luaString(table.RawGetString("description")),
		Binaries:    tagMap(table.RawGetString("binaries")),
		Checksums:   tagMap(table.RawGetString("checksums")),
		Signatures:  tagMap(table.RawGetString("signatures")),
	}

	if resources, ok := table.RawGetString("resources").(*lua.LTable); ok {
		cfg.Resources = map[string][]string{}
		resources.ForEach(func(key, value lua.LValue) {
			list, ok := value.(*lua.LTable)
			if !ok {
				return
			}
			var urls []string
			// Skip nil holes left by platform.when(...)
			list.ForEach(func(_, v lua.LValue) {
				if v.Type() == lua.LTString {
					urls = append(urls, v.String())
				}
			})
			cfg.Resources[key.String()] = urls
		})
	}

	return cfg
}

// tagMap converts a Lua table of tag = url pairs, dropping nil and
// non-string values.
func tagMap(v lua.LValue) map[platform.Tag]string {
	table, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := map[platform.Tag]string{}
	table.ForEach(func(key, value lua.LValue) {
		if key.Type() == lua.LTString && value.Type() == lua.LTString {
			out[platform.Tag(key.String())] = value.String()
		}
	})
	return out
}

func luaString(v lua.LValue) string {
	if v.Type() == lua.LTString {
		return v.String()
	}
	return ""
}
