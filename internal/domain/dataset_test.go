package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetInsertionOrder(t *testing.T) {
	mk := func(cidr string, hops ...string) *Subnet {
		route, err := ParseRoute(hops)
		require.NoError(t, err)
		s, err := NewSubnet(cidr, route, SubnetStatusAccurate)
		require.NoError(t, err)
		return s
	}
	ds := &Dataset{Subnets: []*Subnet{
		mk("10.4.0.0/24", "10.0.0.1", "*", "10.0.0.3"),
		mk("10.3.0.0/24", "10.0.0.1"),
		mk("10.2.0.0/24", "10.0.0.1", "10.0.0.2"),
		mk("10.1.0.0/24", "10.0.0.1", "10.0.0.2"),
	}}

	var got []string
	for _, s := range ds.InsertionOrder() {
		got = append(got, s.Prefix.String())
	}
	assert.Equal(t, []string{"10.1.0.0/24", "10.2.0.0/24", "10.3.0.0/24", "10.4.0.0/24"}, got)
	assert.Equal(t, "10.4.0.0/24", ds.Subnets[0].Prefix.String(), "dataset order must not change")
}
