package main

import (
	"context"
	"fmt"

	"github.com/trezcool/attendly/core/device"
)

func (cli *commandLine) listCameras(ctx context.Context) error {
	sel := cli.selector()
	if err := sel.Refresh(ctx); err != nil {
		return err
	}

	view := sel.View()
	if view.State == device.StateNoCamera {
		fmt.Fprintln(cli.out, "No camera detected")
		return nil
	}
	for _, cam := range view.Devices {
		marker := " "
		if view.Selected != nil && view.Selected.Index == cam.Index {
			marker = "*"
		}
		fmt.Fprintf(cli.out, "%s %d  %s  (%s)\n", marker, cam.Index, cam.DisplayName(), cam.ID)
	}
	return nil
}

func (cli *commandLine) selectCamera(ctx context.Context, index int) error {
	sel := cli.selector()
	if err := sel.Refresh(ctx); err != nil {
		return err
	}
	_, err := sel.Select(index)
	return err
}

// resolveCamera returns the camera index to capture with: the flag when set, else the selected camera.
func (cli *commandLine) resolveCamera(ctx context.Context, flagIndex int) int {
	if flagIndex >= 0 {
		return flagIndex
	}
	sel := cli.selector()
	if err := sel.Refresh(ctx); err != nil {
		cli.logger.Warn("resolving camera, using the first one", err)
		return 0
	}
	if cam, ok := sel.Selected(); ok {
		return cam.Index
	}
	return 0
}
