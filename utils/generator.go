package utils

import (
	"math/rand"
)

const ExamPINLength = 6
const letterBytes = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateExamPIN returns a classroom PIN for exams created without one.
// Look-alike characters (0/O, 1/I) are left out so the PIN can be read aloud.
func GenerateExamPIN() string {
	b := make([]byte, ExamPINLength)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
