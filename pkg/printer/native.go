package printer

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
)

// NativeBackend drives the host's CUPS-style command-line spooler (lp/lpr)
// via os/exec, per spec §4.9.
type NativeBackend struct {
	printerName string
	lpPath      string
}

// NewNativeBackend resolves the lp binary on PATH (falling back to lpr)
// and binds to printerName
// (empty selects the system default printer).
func NewNativeBackend(printerName string) (*NativeBackend, error) {
	path, err := exec.LookPath("lp")
	if err != nil {
		path, err = exec.LookPath("lpr")
		if err != nil {
			return nil, fmt.Errorf("printer: neither lp nor lpr found on PATH: %w", err)
		}
	}
	return &NativeBackend{printerName: printerName, lpPath: path}, nil
}

func (n *NativeBackend) List() ([]string, error) {
	out, err := exec.Command("lpstat", "-p").Output()
	if chk.E(err) {
		return nil, fmt.Errorf("printer: failed to list printers: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "printer" {
			names = append(names, fields[1])
		}
	}
	return names, nil
}

func (n *NativeBackend) Submit(path string, copies int) (bool, error) {
	// lp takes -d/-n; lpr takes -P/-# for the same destination/copies.
	destFlag, copiesFlag := "-d", "-n"
	if filepath.Base(n.lpPath) == "lpr" {
		destFlag, copiesFlag = "-P", "-#"
	}
	args := []string{}
	if n.printerName != "" {
		args = append(args, destFlag, n.printerName)
	}
	if copies > 1 {
		args = append(args, copiesFlag, strconv.Itoa(copies))
	}
	args = append(args, path)

	var stderr bytes.Buffer
	cmd := exec.Command(n.lpPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.W.F("printer: submit failed for %s: %v: %s", path, err, stderr.String())
		return false, nil
	}
	return true, nil
}

func (n *NativeBackend) Status() Status {
	if _, err := exec.LookPath("lpstat"); err != nil {
		return Status{Name: n.printerName, Available: false, Detail: "lpstat not found"}
	}
	cmd := exec.Command("lpstat", "-p", n.printerName)
	if err := cmd.Run(); err != nil {
		return Status{Name: n.printerName, Available: false, Detail: "printer not responding"}
	}
	return Status{Name: n.printerName, Available: true}
}
