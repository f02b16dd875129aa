package platform

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func runLuaCases(t *testing.T, L *lua.LState, tests []struct {
	name string
	code string
	want lua.LValue
}) {
	t.Helper()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err != nil {
				t.Fatalf("failed to execute code: %v", err)
			}
			got := L.Get(-1)
			L.Pop(1)

			if got.Type() != tt.want.Type() {
				t.Errorf("type mismatch: got %v, want %v", got.Type(), tt.want.Type())
				return
			}
			if got.String() != tt.want.String() {
				t.Errorf("value mismatch: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInjectPlatformTable_Linux(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{
		OS:       "linux",
		Arch:     "amd64",
		Machine:  "x86_64",
		Tag:      TagLinuxX86_64,
		Platform: "ubuntu",
		Family:   "debian",
		Version:  "22.04",
	}

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	runLuaCases(t, L, []struct {
		name string
		code string
		want lua.LValue
	}{
		{"tag", `return platform.tag`, lua.LString("linux-x86_64")},
		{"os", `return platform.os`, lua.LString("linux")},
		{"arch", `return platform.arch`, lua.LString("amd64")},
		{"machine", `return platform.machine`, lua.LString("x86_64")},
		{"is_linux", `return platform.is_linux`, lua.LTrue},
		{"is_macos", `return platform.is_macos`, lua.LFalse},
		{"is_windows", `return platform.is_windows`, lua.LFalse},
		{"is_arm64", `return platform.is_arm64`, lua.LFalse},
		{"distro.id", `return platform.distro.id`, lua.LString("ubuntu")},
		{"distro.family", `return platform.distro.family`, lua.LString("debian")},
	})
}

func TestInjectPlatformTable_MacOS(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{
		OS:        "darwin",
		Arch:      "amd64",
		Machine:   "x86_64",
		Processor: "Apple M1",
		Tag:       TagMacOSARM64,
	}

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	runLuaCases(t, L, []struct {
		name string
		code string
		want lua.LValue
	}{
		{"tag", `return platform.tag`, lua.LString("macosx-arm64")},
		{"is_macos", `return platform.is_macos`, lua.LTrue},
		{"is_arm64 follows tag", `return platform.is_arm64`, lua.LTrue},
		{"distro is nil", `return platform.distro`, lua.LNil},
	})
}

func TestPlatformTable_ReadOnly(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, &Info{OS: "linux", Tag: TagLinuxX86_64}); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	tests := []struct {
		name string
		code string
	}{
		{"modify tag", `platform.tag = "win-amd64"`},
		{"add new field", `platform.new_field = "value"`},
		{"replace metatable", `setmetatable(platform, {})`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err == nil {
				t.Error("expected error when modifying read-only table, got nil")
			}
		})
	}
}

func TestPlatformTable_WhenHelper(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, &Info{OS: "linux", Tag: TagLinuxAArch64}); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	runLuaCases(t, L, []struct {
		name string
		code string
		want lua.LValue
	}{
		{"when true returns value", `return platform.when(true, "url")`, lua.LString("url")},
		{"when false returns nil", `return platform.when(false, "url")`, lua.LNil},
		{"when with arm64", `return platform.when(platform.is_arm64, "arm-url")`, lua.LString("arm-url")},
		{"when with macos", `return platform.when(platform.is_macos, "mac-url")`, lua.LNil},
	})
}
