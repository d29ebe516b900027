package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genelab/lab-portal/pkg/errors"
	"github.com/genelab/lab-portal/pkg/httputil"
)

func TestIsFullName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Nguyễn Văn An", true},
		{"Trần Thị Bích Ngọc", true},
		{"Anna", true},
		{"Nguyen Van 2", false},
		{"Lê  Lợi", false},
		{"O'Brien", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFullName(tt.in))
		})
	}
}

func TestIsCitizenID(t *testing.T) {
	assert.True(t, IsCitizenID("001203004567"))
	assert.False(t, IsCitizenID("00120300456"))
	assert.False(t, IsCitizenID("0012030045678"))
	assert.False(t, IsCitizenID("00120300456a"))
}

func TestIsPhone(t *testing.T) {
	assert.True(t, IsPhone("0912345678"))
	assert.False(t, IsPhone("912345678"))
	assert.False(t, IsPhone("1912345678"))
	assert.False(t, IsPhone("09123456789"))
}

func TestIsPastDate(t *testing.T) {
	now = func() time.Time { return time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = time.Now })

	assert.True(t, IsPastDate("1990-01-31"))
	assert.True(t, IsPastDate("2024-06-15"))
	assert.False(t, IsPastDate("2024-06-16"))
	assert.False(t, IsPastDate("15/06/2020"))
	assert.False(t, IsPastDate(""))
}

func TestRegister_WiresTags(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register())

	type form struct {
		FullName  string `json:"full_name" validate:"required,full_name"`
		CitizenID string `json:"citizen_id" validate:"required,citizen_id"`
		Phone     string `json:"phone" validate:"required,phone"`
		DOB       string `json:"date_of_birth" validate:"required,past_date"`
	}

	require.NoError(t, httputil.Validate(form{
		FullName: "Phạm Minh Châu", CitizenID: "079199001234", Phone: "0987654321", DOB: "1999-02-01",
	}))

	err := httputil.Validate(form{FullName: "X1", CitizenID: "123", Phone: "123", DOB: "2999-01-01"})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Len(t, appErr.Details, 4)
	assert.Contains(t, appErr.Details, "citizen_id")
	assert.Contains(t, appErr.Details, "date_of_birth")
}
