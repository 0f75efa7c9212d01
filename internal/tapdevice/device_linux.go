//go:build linux

package tapdevice

import (
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/songgao/water"
)

var (
	_ Device        = (*LinuxDevice)(nil)
	_ Configurator  = (*LinuxDevice)(nil)
)

// LinuxDevice implements Device using songgao/water on Linux.
type LinuxDevice struct {
	iface *water.Interface
	name  string
	file  *os.File
}

// Open creates a TAP device. If name is empty, the OS assigns one.
func Open(name string) (*LinuxDevice, error) {
	cfg := water.Config{DeviceType: water.TAP}
	if name != "" {
		cfg.Name = name
	}
	iface, err := water.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("tapdevice: create: %w", err)
	}
	f, ok := iface.ReadWriteCloser.(*os.File)
	if !ok {
		iface.Close()
		return nil, fmt.Errorf("tapdevice: interface is not fd-backed on this platform")
	}
	return &LinuxDevice{iface: iface, name: iface.Name(), file: f}, nil
}

func (d *LinuxDevice) Name() string { return d.name }

func (d *LinuxDevice) Read(buf []byte) (int, error) { return d.iface.Read(buf) }

func (d *LinuxDevice) Write(buf []byte) (int, error) { return d.iface.Write(buf) }

func (d *LinuxDevice) Fd() int { return int(d.file.Fd()) }

func (d *LinuxDevice) Close() error {
	_ = exec.Command("ip", "link", "delete", d.name).Run()
	return d.iface.Close()
}

func (d *LinuxDevice) SetMTU(mtu int) error {
	return exec.Command("ip", "link", "set", "dev", d.name, "mtu", fmt.Sprintf("%d", mtu)).Run()
}

func (d *LinuxDevice) SetMACAddress(mac net.HardwareAddr) error {
	if err := exec.Command("ip", "link", "set", "dev", d.name, "down").Run(); err != nil {
		return fmt.Errorf("tapdevice: bring down: %w", err)
	}
	if err := exec.Command("ip", "link", "set", "dev", d.name, "address", mac.String()).Run(); err != nil {
		return fmt.Errorf("tapdevice: set mac: %w", err)
	}
	return exec.Command("ip", "link", "set", "dev", d.name, "up").Run()
}

func (d *LinuxDevice) AddIPAddress(ip net.IP, mask net.IPMask) error {
	ones, _ := mask.Size()
	cidr := fmt.Sprintf("%s/%d", ip.String(), ones)
	return exec.Command("ip", "addr", "add", cidr, "dev", d.name).Run()
}

func (d *LinuxDevice) SetUp() error {
	return exec.Command("ip", "link", "set", "dev", d.name, "up").Run()
}
