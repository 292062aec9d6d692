//go:build linux
// +build linux

/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package rewrite

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/foxcpp/trivial-rewrite/framework/log"
)

type SDStatus string

const (
	SDReady     SDStatus = "READY=1"
	SDReloading SDStatus = "RELOADING=1"
	SDStopping  SDStatus = "STOPPING=1"
)

var errNoNotifySock = errors.New("no systemd notify socket")

func sdNotifySock() (*net.UnixConn, error) {
	sockAddr := os.Getenv("NOTIFY_SOCKET")
	if sockAddr == "" {
		return nil, errNoNotifySock
	}
	if strings.HasPrefix(sockAddr, "@") {
		sockAddr = "\x00" + sockAddr[1:]
	}

	return net.DialUnix("unixgram", nil, &net.UnixAddr{
		Name: sockAddr,
		Net:  "unixgram",
	})
}

func systemdStatus(status SDStatus, desc string) {
	sock, err := sdNotifySock()
	if err != nil {
		if !errors.Is(err, errNoNotifySock) {
			log.Println("systemd: failed to acquire notify socket:", err)
		}
		return
	}
	defer sock.Close()

	if desc != "" {
		if _, err := io.WriteString(sock, fmt.Sprintf("%s\nSTATUS=%s", status, desc)); err != nil {
			log.Println("systemd: I/O error:", err)
		}
	} else {
		if _, err := io.WriteString(sock, string(status)); err != nil {
			log.Println("systemd: I/O error:", err)
		}
	}
}

func systemdStatusErr(reportedErr error) {
	sock, err := sdNotifySock()
	if err != nil {
		if !errors.Is(err, errNoNotifySock) {
			log.Println("systemd: failed to acquire notify socket:", err)
		}
		return
	}
	defer sock.Close()

	var errno syscall.Errno
	if errors.As(reportedErr, &errno) {
		if _, err := io.WriteString(sock, fmt.Sprintf("ERRNO=%d\nSTATUS=%v", errno, reportedErr)); err != nil {
			log.Println("systemd: I/O error:", err)
		}
		return
	}

	if _, err := io.WriteString(sock, fmt.Sprintf("STATUS=%v\n", reportedErr)); err != nil {
		log.Println("systemd: I/O error:", err)
	}
}
