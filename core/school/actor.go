package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Actor is the authenticated User along with its school profiles.
type Actor struct {
	User    user.User
	Student *Student
	Teacher *Teacher
	Parent  *Parent
}

func (a Actor) IsAdmin() bool {
	return a.User.IsAdmin()
}

// IsStaff reports whether the actor is an admin or a teacher.
func (a Actor) IsStaff() bool {
	return a.User.IsAdmin() || (a.User.IsTeacher() && a.Teacher != nil)
}

// TeacherID returns the teacher profile ID, "" when the actor does not teach.
func (a Actor) TeacherID() string {
	if a.Teacher == nil {
		return ""
	}
	return a.Teacher.ID
}

// CanManageClassroom reports whether the actor is an admin or the classroom's homeroom teacher.
func (a Actor) CanManageClassroom(c Classroom) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Teacher != nil && c.HomeroomTeacherID != "" && c.HomeroomTeacherID == a.Teacher.ID
}

// CanViewStudent reports whether the actor is staff, the student or the student's parent.
func (a Actor) CanViewStudent(s Student) bool {
	switch {
	case a.IsStaff():
		return true
	case a.Student != nil && a.Student.ID == s.ID:
		return true
	case a.Parent != nil && s.ParentID != "" && a.Parent.ID == s.ParentID:
		return true
	}
	return false
}

// ResolveActor loads the school profiles of usr.
func (svc *Service) ResolveActor(ctx context.Context, usr user.User) (Actor, error) {
	actor := Actor{User: usr}
	if usr.IsStudent() {
		s, err := svc.repo.GetStudentByUserID(ctx, usr.ID)
		if err == nil {
			actor.Student = &s
		} else if errors.Cause(err) != ErrStudentNotFound {
			return Actor{}, errors.Wrap(err, "getting student profile")
		}
	}
	if usr.IsTeacher() {
		t, err := svc.repo.GetTeacherByUserID(ctx, usr.ID)
		if err == nil {
			actor.Teacher = &t
		} else if errors.Cause(err) != ErrTeacherNotFound {
			return Actor{}, errors.Wrap(err, "getting teacher profile")
		}
	}
	if usr.IsParent() {
		p, err := svc.repo.GetParentByUserID(ctx, usr.ID)
		if err == nil {
			actor.Parent = &p
		} else if errors.Cause(err) != ErrParentNotFound {
			return Actor{}, errors.Wrap(err, "getting parent profile")
		}
	}
	return actor, nil
}

// VisibleStudentIDs returns the students a non-staff actor may see: themselves or their children.
// restricted is false for staff, who see every student.
func VisibleStudentIDs(ctx context.Context, repo Repository, actor Actor) (ids []string, restricted bool, err error) {
	if actor.IsStaff() {
		return nil, false, nil
	}
	ids = []string{}
	if actor.Student != nil {
		ids = append(ids, actor.Student.ID)
	}
	if actor.Parent != nil {
		children, err := repo.QueryStudents(ctx, StudentFilter{ParentID: actor.Parent.ID})
		if err != nil {
			return nil, true, errors.Wrap(err, "querying children")
		}
		for _, child := range children {
			ids = append(ids, child.ID)
		}
	}
	return ids, true, nil
}

// RestrictStudentIDs narrows requested student IDs down to the ones the actor may see.
// When filter is true the query must be limited to ids, even if empty.
func RestrictStudentIDs(ctx context.Context, repo Repository, actor Actor, requested []string) (ids []string, filter bool, err error) {
	visible, restricted, err := VisibleStudentIDs(ctx, repo, actor)
	if err != nil || !restricted {
		return requested, len(requested) > 0, err
	}
	if len(requested) == 0 {
		return visible, true, nil
	}
	ids = make([]string, 0, len(requested))
	for _, id := range requested {
		if core.StringInSlice(id, visible) {
			ids = append(ids, id)
		}
	}
	return ids, true, nil
}

// CanTeach reports whether the actor is an admin or is assigned to teach subject to classroom during academicYear.
func CanTeach(ctx context.Context, repo Repository, actor Actor, subjectID, classroomID, academicYear string) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	if actor.Teacher == nil {
		return false, nil
	}
	tas, err := repo.QueryTeachingAssignments(ctx, TeachingAssignmentFilter{
		TeacherID:    actor.Teacher.ID,
		SubjectID:    subjectID,
		ClassroomID:  classroomID,
		AcademicYear: academicYear,
	})
	if err != nil {
		return false, errors.Wrap(err, "querying teaching assignments")
	}
	return len(tas) > 0, nil
}

func (svc *Service) RestrictStudentIDs(ctx context.Context, actor Actor, requested []string) ([]string, bool, error) {
	return RestrictStudentIDs(ctx, svc.repo, actor, requested)
}

func (svc *Service) CanTeach(ctx context.Context, actor Actor, subjectID, classroomID, academicYear string) (bool, error) {
	return CanTeach(ctx, svc.repo, actor, subjectID, classroomID, academicYear)
}
