package port

import "context"

type EnrollmentRepository interface {
	// Enroll adds courses to the user's enrolled set, returns how many were new
	Enroll(ctx context.Context, userID string, courseIDs []string) (int, error)

	EnrolledCourses(ctx context.Context, userID string) ([]string, error)
}

type CartRepository interface {
	ClearCart(ctx context.Context, userID string) error
}
