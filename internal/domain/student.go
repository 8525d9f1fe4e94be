package domain

type Student struct {
	ID string

	FirstName  string
	LastName   string
	MiddleName *string

	AdmissionNumber string

	ClassName string
	Section   *string

	GuardianName  *string
	GuardianPhone *string
}

func (s Student) FullName() string {
	name := s.FirstName
	if s.MiddleName != nil && *s.MiddleName != "" {
		name += " " + *s.MiddleName
	}
	if s.LastName != "" {
		name += " " + s.LastName
	}
	return name
}
