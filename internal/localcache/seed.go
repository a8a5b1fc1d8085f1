package localcache

import (
	"strconv"
	"time"
)

type seedIssue struct {
	title, description, category, location string
	lat, lng                               float64
	upvotes, comments                      int
	status, timeAgo, reportedBy            string
}

// Демонстрационные обращения по Гоа
var seedIssues = []seedIssue{
	{"Large pothole on MG Road", "Deep pothole causing traffic issues", "Potholes", "MG Road, Panaji", 15.4909, 73.8278, 142, 23, "in-progress", "2 hours ago", "Rajesh Kumar"},
	{"Street light not working", "Broken street light making area unsafe at night", "Street Lights", "Altinho, Panaji", 15.4989, 73.8258, 89, 15, "pending", "5 hours ago", "Priya Sharma"},
	{"Garbage pile near market", "Uncollected garbage creating hygiene issues", "Garbage", "Municipal Market", 15.4859, 73.8318, 67, 8, "pending", "1 day ago", "Amit Patel"},
	{"Water pipeline leakage", "Continuous water leakage wasting resources", "Water Supply", "Campal Area", 15.4939, 73.8198, 103, 19, "in-progress", "3 hours ago", "Sneha Desai"},
	{"Broken manhole cover", "Dangerous open manhole on main road", "Others", "Miramar Beach Road", 15.5019, 73.8338, 234, 45, "resolved", "2 days ago", "Municipal Officer"},
	{"Overflowing drainage", "Sewage overflow during rain", "Water Supply", "Dona Paula", 15.4535, 73.8065, 178, 32, "pending", "6 hours ago", "Ramesh Naik"},
	{"Damaged road divider", "Broken divider causing accidents", "Others", "Kadamba Plateau", 15.4750, 73.8150, 95, 18, "in-progress", "8 hours ago", "Kavita Singh"},
	{"No street lights in colony", "Entire street has no lighting", "Street Lights", "Caranzalem", 15.4980, 73.8380, 156, 28, "pending", "12 hours ago", "Sunil Rao"},
	{"Multiple potholes", "Road full of potholes after monsoon", "Potholes", "Ribandar", 15.4890, 73.8490, 201, 41, "in-progress", "1 day ago", "Anjali Deshmukh"},
	{"Stray dog menace", "Large number of stray dogs causing problems", "Others", "Tonca", 15.4670, 73.8290, 89, 15, "pending", "4 hours ago", "Prakash Kamat"},
	{"Garbage bins overflowing", "No collection for past 4 days", "Garbage", "Santa Cruz", 15.4820, 73.8200, 123, 22, "pending", "7 hours ago", "Maria Fernandes"},
	{"Footpath encroachment", "Vendors blocking entire footpath", "Others", "18th June Road", 15.4920, 73.8260, 67, 11, "pending", "9 hours ago", "Deepak Shetty"},
}

// DefaultIssues возвращает свежую копию демонстрационного набора с id "1".."12"
func DefaultIssues(now time.Time) []LocalIssue {
	issues := make([]LocalIssue, len(seedIssues))
	for i, s := range seedIssues {
		issues[i] = LocalIssue{
			ID:          strconv.Itoa(i + 1),
			Title:       s.title,
			Description: s.description,
			Category:    s.category,
			Location:    s.location,
			Coordinates: Coordinates{Lat: s.lat, Lng: s.lng},
			Upvotes:     s.upvotes,
			Comments:    s.comments,
			Status:      s.status,
			TimeAgo:     s.timeAgo,
			Date:        now.UTC(),
			ReportedBy:  s.reportedBy,
			Images:      []string{},
		}
	}
	return issues
}
