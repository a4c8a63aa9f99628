package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestSubmissionStudentBelongsToUser(t *testing.T) {
	s, err := schema.Parse(&Submission{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	rel, ok := s.Relationships.Relations["Student"]
	require.True(t, ok)
	assert.Equal(t, schema.BelongsTo, rel.Type)
	require.Len(t, rel.References, 1)
	assert.Equal(t, "StudentID", rel.References[0].ForeignKey.Name)
	assert.Equal(t, "ID", rel.References[0].PrimaryKey.Name)
}

func TestUserStudentNumberColumn(t *testing.T) {
	s, err := schema.Parse(&User{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	field := s.LookUpField("student_id")
	require.NotNil(t, field)
	assert.Equal(t, "StudentNumber", field.Name)
}
