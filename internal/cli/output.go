package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	v1 "github.com/shenikar/cityvoice/internal/handler/http/v1"
	"github.com/shenikar/cityvoice/internal/localcache"
)

// printJSON выводит v как JSON с отступами
func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printValue выводит JSON или, с --pretty, текст из pretty
func (a *app) printValue(v any, pretty func()) {
	if a.gf.pretty {
		pretty()
		return
	}
	a.printJSON(v)
}

func (a *app) printIssues(issues []v1.IssueResponse) {
	if !a.gf.pretty {
		a.printJSON(issues)
		return
	}
	if len(issues) == 0 {
		fmt.Fprintln(a.out, "No issues found.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tVOTES\tCATEGORY\tTITLE")
	for _, iss := range issues {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", iss.ID, iss.Status, iss.Votes, iss.Category, iss.Title)
	}
	w.Flush()
}

func (a *app) printIssue(issue *v1.IssueResponse) {
	a.printValue(issue, func() {
		fmt.Fprintf(a.out, "Issue %s\n", issue.ID)
		fmt.Fprintf(a.out, "  Title:       %s\n", issue.Title)
		fmt.Fprintf(a.out, "  Status:      %s\n", issue.Status)
		fmt.Fprintf(a.out, "  Category:    %s\n", issue.Category)
		fmt.Fprintf(a.out, "  Location:    %.5f, %.5f\n", issue.Location.Latitude, issue.Location.Longitude)
		if issue.Location.Address != "" {
			fmt.Fprintf(a.out, "  Address:     %s\n", issue.Location.Address)
		}
		if issue.Description != "" {
			fmt.Fprintf(a.out, "  Description: %s\n", issue.Description)
		}
		if issue.ImageURL != "" {
			fmt.Fprintf(a.out, "  Image:       %s\n", issue.ImageURL)
		}
		fmt.Fprintf(a.out, "  Votes:       %d\n", issue.Votes)
		fmt.Fprintf(a.out, "  Version:     %d\n", issue.Version)
		fmt.Fprintf(a.out, "  Created:     %s\n", issue.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(a.out, "  Updated:     %s\n", issue.UpdatedAt.Format("2006-01-02 15:04:05"))
	})
}

func (a *app) printLocalIssues(issues []localcache.LocalIssue) {
	if !a.gf.pretty {
		a.printJSON(issues)
		return
	}
	if len(issues) == 0 {
		fmt.Fprintln(a.out, "No local issues.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tUPVOTES\tCATEGORY\tWHEN\tTITLE")
	for _, iss := range issues {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", iss.ID, iss.Status, iss.Upvotes, iss.Category, iss.TimeAgo, iss.Title)
	}
	w.Flush()
}

func (a *app) printHotspots(hotspots []v1.HotspotResponse) {
	if !a.gf.pretty {
		a.printJSON(hotspots)
		return
	}
	if len(hotspots) == 0 {
		fmt.Fprintln(a.out, "No hotspots.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LAT\tLNG\tSEVERITY\tOPEN\tTOTAL\tCATEGORIES")
	for _, h := range hotspots {
		fmt.Fprintf(w, "%.4f\t%.4f\t%s\t%d\t%d\t%s\n", h.Latitude, h.Longitude, h.Severity, h.OpenCount, h.Count, formatCounts(h.Categories))
	}
	w.Flush()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ",")
}

// isFlagSet - флаг явно передан в командной строке
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
