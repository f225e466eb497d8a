package domain

type Course struct {
	ID            string
	Title         string
	Price         int64
	StudentsCount int64
}

// CourseSnapshot is the price of a course frozen into an order at checkout.
type CourseSnapshot struct {
	CourseID string `json:"courseId"`
	Price    int64  `json:"price"`
}

func Snapshot(courses []Course) []CourseSnapshot {
	snaps := make([]CourseSnapshot, 0, len(courses))
	for _, c := range courses {
		snaps = append(snaps, CourseSnapshot{CourseID: c.ID, Price: c.Price})
	}
	return snaps
}

func SumPrices(snaps []CourseSnapshot) int64 {
	var total int64
	for _, s := range snaps {
		total += s.Price
	}
	return total
}

func CourseIDs(snaps []CourseSnapshot) []string {
	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		ids = append(ids, s.CourseID)
	}
	return ids
}
