package exporter

import (
	"context"
	"strconv"

	errs "wosexport/pkg/errors"
	"wosexport/pkg/human"
	"wosexport/pkg/plan"
)

// Export dialog elements
const (
	XExport          = `//span[contains(@class, "mat-button-wrapper") and text()=" Export "]`
	XPlainText       = `//button[contains(@class, "mat-menu-item") and text()=" Plain text file "]`
	XPlainTextAria   = `//button[contains(@class, "mat-menu-item") and @aria-label="Plain text file"]`
	XRecordsFrom     = `//*[text()[contains(string(), "Records from:")]]`
	XMarkFrom        = `//input[@name="markFrom"]`
	XMarkTo          = `//input[@name="markTo"]`
	XContentDropdown = `//button[@class="dropdown"]`
	XExportConfirm   = `//span[contains(@class, "ng-star-inserted") and text()="Export"]`
	XCancel          = `//span[@class="mat-button-wrapper" and text()='Cancel ']`
)

// ContentOption locates the record content entry in the dropdown
func ContentOption(content string) string {
	return `//div/span[text()="` + content + `"]`
}

// recordsFromRatio keeps the pointer near the label's centre so the click
// lands on the radio button
const recordsFromRatio = 0.05

// exportOnce drives the dialog for one range and returns the claimed file
func (e *Exporter) exportOnce(ctx context.Context, q string, r plan.Range) (string, error) {
	d := e.actor.Driver()

	if d.Exists(ctx, XRecordsFrom, e.timeouts.Overlay) {
		e.logger.Warn("Export dialog left open, cancelling it")
		if err := e.actor.HoverPauseClick(ctx, XCancel, human.ClickOptions{Retries: 3}); err != nil {
			return "", err
		}
	}

	before, err := e.downloads.Snapshot()
	if err != nil {
		return "", err
	}

	if err := e.actor.Click(ctx, XExport); err != nil {
		return "", err
	}
	if err := e.actor.Click(ctx, XPlainText); err != nil {
		if err := e.actor.Click(ctx, XPlainTextAria); err != nil {
			return "", err
		}
	}

	if err := e.actor.HoverPauseClick(ctx, XRecordsFrom, human.ClickOptions{Ratio: recordsFromRatio}); err != nil {
		return "", err
	}
	if err := e.actor.Replace(ctx, XMarkFrom, strconv.Itoa(r.Start)); err != nil {
		return "", err
	}
	if err := e.actor.Replace(ctx, XMarkTo, strconv.Itoa(r.End)); err != nil {
		return "", err
	}

	if err := e.actor.Click(ctx, XContentDropdown); err != nil {
		return "", err
	}
	if err := e.actor.Click(ctx, ContentOption(e.cfg.RecordContent)); err != nil {
		return "", err
	}
	if err := e.actor.Click(ctx, XExportConfirm); err != nil {
		return "", err
	}

	if err := d.WaitGone(ctx, XRecordsFrom, e.cfg.DialogTimeout); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Warn("Export dialog still open, cancelling it")
		_ = e.actor.Click(ctx, XCancel)
		return "", errs.ExportTimeout("exporter.dialog", "export dialog for %s still open after %s", r, e.cfg.DialogTimeout)
	}

	path, err := e.downloads.WaitForNew(ctx, before, e.cfg.DownloadTimeout)
	if err != nil {
		return "", err
	}
	return e.downloads.Claim(path, q, r)
}
