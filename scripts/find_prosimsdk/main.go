//go:build windows

// Command find_prosimsdk reports where ProSimSDK.dll is and whether its COM
// classes are registered.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows/registry"

	"prosimgo/pkg/prosim/comsdk"
)

func main() {
	fmt.Println("=== ProSim SDK Detection ===")
	fmt.Println()

	fmt.Println("1. Checking PROSIM_SDK_PATH...")
	if p := os.Getenv("PROSIM_SDK_PATH"); p != "" {
		fmt.Printf("   PROSIM_SDK_PATH = %s\n", p)
	} else {
		fmt.Println("   PROSIM_SDK_PATH not set")
	}
	fmt.Println()

	fmt.Println("2. Checking candidate paths...")
	for _, p := range comsdk.CandidatePaths() {
		checkPath(p)
	}
	if found, err := comsdk.FindSDK(); err == nil {
		fmt.Printf("   -> using %s\n", found)
	}
	fmt.Println()

	fmt.Printf("3. Checking COM registration of %s...\n", comsdk.ConnectProgID)
	clsid, ok := readDefault(comsdk.ConnectProgID + `\CLSID`)
	if !ok {
		fmt.Println("   ✗ Not registered. Run: regasm ProSimSDK.dll /codebase")
		return
	}
	fmt.Printf("   CLSID = %s\n", clsid)

	inproc := `CLSID\` + clsid + `\InprocServer32`
	if server, ok := readDefault(inproc); ok {
		fmt.Printf("   InprocServer32 = %s\n", server)
	}
	if key, err := registry.OpenKey(registry.CLASSES_ROOT, inproc, registry.QUERY_VALUE); err == nil {
		if codebase, _, err := key.GetStringValue("CodeBase"); err == nil {
			fmt.Printf("   CodeBase = %s\n", codebase)
			checkPath(filepath.FromSlash(trimFileURL(codebase)))
		} else {
			fmt.Println("   CodeBase not set; the assembly must be in the GAC")
		}
		key.Close()
	}

	fmt.Println()
	fmt.Println("=== Detection Complete ===")
}

func readDefault(path string) (string, bool) {
	key, err := registry.OpenKey(registry.CLASSES_ROOT, path, registry.QUERY_VALUE)
	if err != nil {
		return "", false
	}
	defer key.Close()
	val, _, err := key.GetStringValue("")
	return val, err == nil
}

func trimFileURL(u string) string {
	const prefix = "file:///"
	if len(u) > len(prefix) && u[:len(prefix)] == prefix {
		return u[len(prefix):]
	}
	return u
}

func checkPath(path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("   ✓ FOUND: %s\n", path)
	} else {
		fmt.Printf("   ✗ NOT FOUND: %s\n", path)
	}
}
