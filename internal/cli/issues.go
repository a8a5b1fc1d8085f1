package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	v1 "github.com/shenikar/cityvoice/internal/handler/http/v1"
	"github.com/shenikar/cityvoice/internal/localcache"
)

func (a *app) runList(args []string) error {
	fs := a.newFlagSet("list")
	status := fs.String("status", "", "Filter by status")
	category := fs.String("category", "", "Filter by category")
	sortBy := fs.String("sort", "", "newest, oldest or votes")
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	issues, err := client.ListIssues(ListOpts{Status: *status, Category: *category, Sort: *sortBy})
	if errors.Is(err, ErrUnreachable) {
		fmt.Fprintf(a.errOut, "warning: %v; showing local issues\n", err)
		local, err := a.cache.AllIssues(a.ctx)
		if err != nil {
			return err
		}
		a.printLocalIssues(filterLocal(local, *status, *category))
		return nil
	}
	if err != nil {
		return fmt.Errorf("list issues: %w", err)
	}
	a.printIssues(issues)
	return nil
}

// filterLocal применяет фильтры ленты к локальному набору
func filterLocal(issues []localcache.LocalIssue, status, category string) []localcache.LocalIssue {
	out := make([]localcache.LocalIssue, 0, len(issues))
	for _, issue := range issues {
		if status != "" && !strings.EqualFold(status, "all") && !strings.EqualFold(issue.Status, status) {
			continue
		}
		if category != "" && !strings.EqualFold(category, "all") && !strings.EqualFold(issue.Category, category) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

func (a *app) runReport(args []string) error {
	fs := a.newFlagSet("report")
	title := fs.String("title", "", "Short title")
	description := fs.String("description", "", "What is wrong")
	category := fs.String("category", "Others", "Category, e.g. Potholes, Street Lights, Garbage")
	address := fs.String("address", "", "Human readable address")
	lat := fs.Float64("lat", 0, "Latitude")
	lng := fs.Float64("lng", 0, "Longitude")
	image := fs.String("image", "", "Path to a photo")
	offline := fs.Bool("offline", false, "Store the report locally without contacting the API")
	if err := fs.Parse(reorderArgs(args, "offline")); err != nil {
		return err
	}
	if *title == "" || *description == "" {
		return fmt.Errorf("usage: cityvoice report --title TITLE --description TEXT --lat LAT --lng LNG [--category C] [--address A] [--image PATH] [--offline]")
	}

	// Без координат берем сохраненную точку
	if !isFlagSet(fs, "lat") && !isFlagSet(fs, "lng") {
		loc, err := a.cache.Location(a.ctx)
		if err != nil {
			return err
		}
		if loc == nil {
			return fmt.Errorf("no coordinates: pass --lat/--lng or run 'cityvoice location set <lat> <lng>'")
		}
		*lat, *lng = loc.Lat, loc.Lng
	}

	if *offline {
		return a.reportLocally(*title, *description, *category, *address, *lat, *lng, *image)
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	issue, err := client.CreateIssue(v1.CreateIssueRequest{
		Title:       *title,
		Description: *description,
		Category:    *category,
		Address:     *address,
		Latitude:    lat,
		Longitude:   lng,
	}, *image)
	if errors.Is(err, ErrUnreachable) {
		fmt.Fprintf(a.errOut, "warning: %v; saving report locally\n", err)
		return a.reportLocally(*title, *description, *category, *address, *lat, *lng, *image)
	}
	if err != nil {
		return fmt.Errorf("report issue: %w", err)
	}
	a.printIssue(issue)
	return nil
}

func (a *app) reportLocally(title, description, category, address string, lat, lng float64, image string) error {
	session, err := a.cache.Session(a.ctx)
	if err != nil {
		return err
	}
	var images []string
	if image != "" {
		images = []string{image}
	}
	issue, err := a.cache.AddReportedIssue(a.ctx, localcache.NewIssue{
		Title:       title,
		Description: description,
		Category:    category,
		Location:    address,
		Coordinates: localcache.Coordinates{Lat: lat, Lng: lng},
		ReportedBy:  session.UserName,
		Images:      images,
	})
	if err != nil {
		return fmt.Errorf("save local report: %w", err)
	}
	a.printLocalIssues([]localcache.LocalIssue{issue})
	return nil
}

func (a *app) runStatus(args []string) error {
	fs := a.newFlagSet("status")
	version := fs.Int64("version", 0, "Expected issue version; rejects the change if the issue was modified")
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: cityvoice status <id> <status> [--version N]")
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	issue, err := client.UpdateStatus(fs.Arg(0), fs.Arg(1), *version)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	a.printIssue(issue)
	return nil
}

func (a *app) runVote(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cityvoice vote <id>")
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	result, err := client.Vote(args[0])
	if err != nil {
		return fmt.Errorf("vote: %w", err)
	}
	a.printValue(result, func() {
		verb := "removed"
		if result.Voted {
			verb = "added"
		}
		fmt.Fprintf(a.out, "Vote %s, issue %s now has %d votes\n", verb, result.IssueID, result.Votes)
	})
	return nil
}

func (a *app) runHotspots(args []string) error {
	fs := a.newFlagSet("hotspots")
	precision := fs.Int("precision", 2, "Decimals kept in coordinates (1-4)")
	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	hotspots, err := client.Hotspots(*precision)
	if err != nil {
		return fmt.Errorf("hotspots: %w", err)
	}
	a.printHotspots(hotspots)
	return nil
}

func (a *app) runLocal(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cityvoice local list | local remove <id>")
	}
	switch args[0] {
	case "list":
		issues, err := a.cache.GetReportedIssues(a.ctx)
		if err != nil {
			return err
		}
		a.printLocalIssues(issues)
		return nil
	case "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: cityvoice local remove <id>")
		}
		if err := a.cache.RemoveReportedIssue(a.ctx, args[1]); err != nil {
			return fmt.Errorf("remove local report: %w", err)
		}
		fmt.Fprintf(a.errOut, "Removed %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown local subcommand: %s", args[0])
	}
}

type locationView struct {
	localcache.UserLocation
	Requested bool `json:"requested"`
}

func (a *app) runLocation(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: cityvoice location set <lat> <lng> | location show")
	}
	switch args[0] {
	case "set":
		if len(args) != 3 {
			return fmt.Errorf("usage: cityvoice location set <lat> <lng>")
		}
		lat, err := strconv.ParseFloat(args[1], 64)
		if err != nil || lat < -90 || lat > 90 {
			return fmt.Errorf("invalid latitude %q", args[1])
		}
		lng, err := strconv.ParseFloat(args[2], 64)
		if err != nil || lng < -180 || lng > 180 {
			return fmt.Errorf("invalid longitude %q", args[2])
		}
		loc, err := a.cache.SetLocation(a.ctx, lat, lng)
		if err != nil {
			return fmt.Errorf("save location: %w", err)
		}
		a.printValue(loc, func() {
			fmt.Fprintf(a.out, "Location set to %.4f, %.4f\n", loc.Lat, loc.Lng)
		})
		return nil
	case "show":
		loc, err := a.cache.Location(a.ctx)
		if err != nil {
			return err
		}
		requested, err := a.cache.HasRequestedLocation(a.ctx)
		if err != nil {
			return err
		}
		if loc == nil {
			if requested {
				return fmt.Errorf("saved location is unreadable, run 'cityvoice location set <lat> <lng>'")
			}
			return fmt.Errorf("no saved location")
		}
		a.printValue(locationView{UserLocation: *loc, Requested: requested}, func() {
			fmt.Fprintf(a.out, "%.4f, %.4f (saved %s ago)\n", loc.Lat, loc.Lng, a.cache.LocationAge(loc).Round(time.Second))
		})
		return nil
	default:
		return fmt.Errorf("unknown location subcommand: %s", args[0])
	}
}
