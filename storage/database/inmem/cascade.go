package inmemdb

// Deletions follow the foreign keys of the SQL schema.

func (t *tables) deleteUser(id string) {
	for sid, s := range t.students {
		if s.UserID == id {
			t.deleteStudent(sid)
		}
	}
	for tid, tc := range t.teachers {
		if tc.UserID == id {
			t.deleteTeacher(tid)
		}
	}
	for pid, p := range t.parents {
		if p.UserID == id {
			t.deleteParent(pid)
		}
	}
	for aid, a := range t.attendances {
		if a.RecordedByID == id {
			a.RecordedByID = ""
			t.attendances[aid] = a
		}
	}
	for did, d := range t.demerits {
		if d.RecordedByID == id {
			d.RecordedByID = ""
			t.demerits[did] = d
		}
	}
	delete(t.users, id)
}

func (t *tables) deleteStudent(id string) {
	for gid, gb := range t.gradebooks {
		if gb.StudentID == id {
			t.deleteGradebook(gid)
		}
	}
	for aid, a := range t.attendances {
		if a.StudentID == id {
			delete(t.attendances, aid)
		}
	}
	for did, d := range t.demerits {
		if d.StudentID == id {
			delete(t.demerits, did)
		}
	}
	delete(t.students, id)
}

func (t *tables) deleteTeacher(id string) {
	for cid, c := range t.classrooms {
		if c.HomeroomTeacherID == id {
			c.HomeroomTeacherID = ""
			t.classrooms[cid] = c
		}
	}
	for taID, ta := range t.teachingAssignments {
		if ta.TeacherID == id {
			delete(t.teachingAssignments, taID)
		}
	}
	for aid, a := range t.assessments {
		if a.CreatedByID == id {
			a.CreatedByID = ""
			t.assessments[aid] = a
		}
	}
	delete(t.teachers, id)
}

func (t *tables) deleteParent(id string) {
	for sid, s := range t.students {
		if s.ParentID == id {
			s.ParentID = ""
			t.students[sid] = s
		}
	}
	delete(t.parents, id)
}

func (t *tables) deleteClassroom(id string) {
	for taID, ta := range t.teachingAssignments {
		if ta.ClassroomID == id {
			delete(t.teachingAssignments, taID)
		}
	}
	for aid, a := range t.assessments {
		if a.ClassroomID == id {
			t.deleteAssessment(aid)
		}
	}
	for aid, a := range t.attendances {
		if a.ClassroomID == id {
			delete(t.attendances, aid)
		}
	}
	delete(t.classrooms, id)
}

func (t *tables) deleteSubject(id string) {
	for scID, sc := range t.subjectConfigs {
		if sc.SubjectID == id {
			delete(t.subjectConfigs, scID)
		}
	}
	for gid, gb := range t.gradebooks {
		if gb.SubjectID == id {
			t.deleteGradebook(gid)
		}
	}
	for aid, a := range t.assessments {
		if a.SubjectID == id {
			t.deleteAssessment(aid)
		}
	}
	delete(t.subjects, id)
}

func (t *tables) deleteGradebook(id string) {
	for sid, s := range t.scores {
		if s.GradebookID == id {
			delete(t.scores, sid)
		}
	}
	delete(t.gradebooks, id)
}

func (t *tables) deleteAssessment(id string) {
	for sid, s := range t.scores {
		if s.AssessmentID == id {
			delete(t.scores, sid)
		}
	}
	delete(t.assessments, id)
}
