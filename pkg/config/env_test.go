package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductionLike(t *testing.T) {
	assert.True(t, ProductionLike("production"))
	assert.True(t, ProductionLike("Staging"))
	assert.False(t, ProductionLike("development"))
	assert.False(t, ProductionLike("test"))
	assert.False(t, ProductionLike(""))
}

func TestRequireRemote(t *testing.T) {
	assert.NoError(t, requireRemote("LABPORTAL_OCR_URL", "https://ocr.lab.internal", EnvProduction))
	assert.Error(t, requireRemote("LABPORTAL_OCR_URL", "", EnvProduction))
	assert.Error(t, requireRemote("LABPORTAL_OCR_URL", "http://localhost:8500", EnvProduction))
	assert.Error(t, requireRemote("LABPORTAL_BACKEND_URL", "http://127.0.0.1:8000", EnvStaging))
}
