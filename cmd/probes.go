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

	"github.com/spf13/cobra"

	"github.com/tricore-tools/tricore-gdb/pkg/mcd"
	_ "github.com/tricore-tools/tricore-gdb/pkg/mcd/mcdsim"
)

// probesCmd represents the probes command
var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "list probe drivers and attachable devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range mcd.DriverNames() {
			fmt.Printf("%s:\n", name)
			driver, err := mcd.OpenDriver(name)
			if err != nil {
				return err
			}
			devices, err := driver.ListDevices()
			if err != nil {
				fmt.Printf("  scan failed: %v\n", err)
				continue
			}
			if len(devices) == 0 {
				fmt.Println("  no devices attached")
				continue
			}
			for _, dev := range devices {
				fmt.Printf("  [%d] %s\n", dev.Index, dev.Description)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probesCmd)
}
