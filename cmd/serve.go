/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tricore-tools/tricore-gdb/pkg/flash"
	"github.com/tricore-tools/tricore-gdb/pkg/gdb"
	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
	_ "github.com/tricore-tools/tricore-gdb/pkg/mcd/mcdsim"
	"github.com/tricore-tools/tricore-gdb/pkg/rsp"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve a gdb remote session for an attached device",
	Long: `serve connects to a debug probe, optionally flashes an ELF image,
then listens for gdb on a TCP port. Connect from gdb with:

    (gdb) target remote :9001`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logrus.StandardLogger()

		driver, err := mcd.OpenDriver(viper.GetString("driver"))
		if err != nil {
			return err
		}
		devices, err := driver.ListDevices()
		if err != nil {
			return fmt.Errorf("scan devices: %w", err)
		}
		if len(devices) == 0 {
			return fmt.Errorf("no attachable devices found")
		}

		dev, err := pickDevice(devices, deviceIndex)
		if err != nil {
			return err
		}
		log.WithField("device", dev.Description).Info("connecting")

		sys, err := driver.Connect(dev)
		if err != nil {
			return fmt.Errorf("connect to device: %w", err)
		}

		if elfPath != "" {
			log.WithField("image", elfPath).Info("flashing")
			if err := flash.Program(sys, elfPath, log); err != nil {
				sys.Close()
				return err
			}
		}

		target, err := gdb.NewTarget(sys, gdb.Options{Logger: log})
		if err != nil {
			sys.Close()
			return err
		}
		defer target.Close()

		addr := viper.GetString("listen")
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		defer ln.Close()
		log.WithField("addr", ln.Addr()).Info("waiting for gdb")

		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			log.WithField("peer", conn.RemoteAddr()).Info("gdb connected")
			if err := rsp.New(target, log).Serve(conn); err != nil {
				conn.Close()
				return err
			}
			conn.Close()
		}
	},
}

var (
	deviceIndex int
	elfPath     string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("driver", "sim", "probe driver to use, see `tricore-gdb probes`")
	serveCmd.Flags().String("listen", "127.0.0.1:9001", "TCP address to serve gdb on")
	serveCmd.Flags().IntVar(&deviceIndex, "device", -1, "device index, -1 asks when several are attached")
	serveCmd.Flags().StringVar(&elfPath, "elf", "", "ELF image to flash before serving")
	viper.BindPFlag("driver", serveCmd.Flags().Lookup("driver"))
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

// pickDevice selects the device to attach. A single device is taken as is,
// several without an explicit --device prompt interactively.
func pickDevice(devices []mcd.DeviceInfo, index int) (mcd.DeviceInfo, error) {
	if index >= 0 {
		for _, dev := range devices {
			if dev.Index == index {
				return dev, nil
			}
		}
		return mcd.DeviceInfo{}, fmt.Errorf("no device with index %d", index)
	}
	if len(devices) == 1 {
		return devices[0], nil
	}

	for _, dev := range devices {
		fmt.Printf("  [%d] %s\n", dev.Index, dev.Description)
	}

	line := liner.NewLiner()
	defer line.Close()
	input, err := line.Prompt("device> ")
	if err != nil {
		return mcd.DeviceInfo{}, err
	}
	chosen, err := strconv.Atoi(input)
	if err != nil {
		return mcd.DeviceInfo{}, fmt.Errorf("bad device index %q", input)
	}
	return pickDevice(devices, chosen)
}
