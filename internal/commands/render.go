package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"offer-tracker/internal/charts"
	"offer-tracker/internal/dateutil"
	"offer-tracker/internal/models"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	faint  = color.New(color.Faint)
)

func newTable() *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	return tbl
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusText(o models.Offer, now time.Time) string {
	switch charts.ConversionStatus(o, now) {
	case charts.StatusConverted:
		return green.Sprint("converted")
	case charts.StatusPending:
		return yellow.Sprint("pending")
	default:
		return red.Sprint("not converted")
	}
}

func followupText(o models.Offer, now time.Time) string {
	if o.FollowupDate == nil {
		return faint.Sprint("-")
	}
	when := dateutil.FormatShort(*o.FollowupDate)
	switch {
	case o.FollowupCompleted:
		return faint.Sprintf("%s (done)", when)
	case !o.FollowupDate.After(now):
		return red.Sprintf("%s (%s)", when, humanize.RelTime(*o.FollowupDate, now, "ago", "from now"))
	default:
		return fmt.Sprintf("%s (%s)", when, humanize.RelTime(*o.FollowupDate, now, "ago", "from now"))
	}
}

func writeOffers(w io.Writer, list []models.Offer, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, faint.Sprint("No offers."))
		return
	}

	tbl := newTable()
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("Case"), bold.Sprint("Channel"), bold.Sprint("Type"),
		bold.Sprint("Date"), bold.Sprint("Status"), bold.Sprint("Follow-up"))
	for _, o := range list {
		tbl.AddRow(shortID(o.ID), o.CaseNumber, o.Channel, o.OfferType,
			dateutil.FormatDate(o.Date), statusText(o, now), followupText(o, now))
	}
	fmt.Fprintln(w, tbl)
}
