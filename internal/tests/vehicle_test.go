package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matatu/internal/domain"
	"matatu/internal/service"
)

func TestCreateVehicle_OwnerRegistersOwn(t *testing.T) {
	t.Parallel()
	f := NewFixture()

	v, err := f.VehicleSvc.CreateVehicle(context.Background(), Owner, service.CreateVehicleRequest{
		PlateNumber: " kdb  456b ",
	})
	require.NoError(t, err)

	assert.Equal(t, "KDB 456B", v.PlateNumber)
	assert.Equal(t, OwnerID, v.OwnerID)
	assert.Equal(t, domain.DefaultVehicleCapacity, v.Capacity)
}

func TestCreateVehicle_Rules(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		p       domain.Principal
		req     service.CreateVehicleRequest
		wantErr error
	}{
		{"sacco names owner", Sacco, service.CreateVehicleRequest{PlateNumber: "KDA 001A", Capacity: 33, OwnerID: OwnerID}, nil},
		{"sacco without owner", Sacco, service.CreateVehicleRequest{PlateNumber: "KDA 002A"}, service.ErrValidation},
		{"owner must be an owner", Sacco, service.CreateVehicleRequest{PlateNumber: "KDA 003A", OwnerID: DriverID}, service.ErrValidation},
		{"owner for someone else", Owner, service.CreateVehicleRequest{PlateNumber: "KDA 004A", OwnerID: "user-x"}, service.ErrForbidden},
		{"conductor", Conductor, service.CreateVehicleRequest{PlateNumber: "KDA 005A"}, service.ErrForbidden},
		{"duplicate plate", Owner, service.CreateVehicleRequest{PlateNumber: "kcx 123a"}, service.ErrPlateTaken},
		{"negative capacity", Owner, service.CreateVehicleRequest{PlateNumber: "KDA 006A", Capacity: -1}, service.ErrValidation},
		{"empty plate", Owner, service.CreateVehicleRequest{PlateNumber: "  "}, service.ErrValidation},
	}

	for _, tt := range tests {
		_, err := f.VehicleSvc.CreateVehicle(ctx, tt.p, tt.req)
		if tt.wantErr == nil {
			assert.NoError(t, err, tt.name)
		} else {
			assert.ErrorIs(t, err, tt.wantErr, tt.name)
		}
	}
}

func TestListVehicles(t *testing.T) {
	t.Parallel()
	f := NewFixture()
	ctx := context.Background()

	f.Vehicles.AddVehicle(&domain.Vehicle{ID: "v-2", PlateNumber: "KBZ 999Z", Capacity: 14, OwnerID: "user-x"})

	own, err := f.VehicleSvc.ListVehicles(ctx, Owner)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, VehicleID, own[0].ID)

	all, err := f.VehicleSvc.ListVehicles(ctx, Sacco)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
