package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm/schema"
)

func TestProfileImageColumnHoldsLargeDataURL(t *testing.T) {
	s, err := schema.Parse(&User{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	field := s.LookUpField("ProfileImage")
	require.NotNil(t, field)

	// MySQL 的 TEXT 只有 64KB，放不下 2MB 的头像
	assert.Equal(t, "mediumtext", mysql.Dialector{Config: &mysql.Config{}}.DataTypeOf(field))
	assert.Equal(t, "text", postgres.Dialector{Config: &postgres.Config{}}.DataTypeOf(field))
	assert.GreaterOrEqual(t, field.Size, 2<<20)
}
