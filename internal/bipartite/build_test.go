package bipartite

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treenet/internal/domain"
	"treenet/internal/tree"
)

func insert(t *testing.T, tr *tree.Tree, cidr string, hops ...string) {
	t.Helper()
	route, err := domain.ParseRoute(hops)
	require.NoError(t, err)
	s, err := domain.NewSubnet(cidr, route, domain.SubnetStatusAccurate)
	require.NoError(t, err)
	require.True(t, tr.Insert(s))
}

func router(addrs ...string) *domain.Router {
	r := domain.NewRouter(netip.MustParseAddr(addrs[0]), domain.AliasFirstElement)
	for _, a := range addrs[1:] {
		r.Add(netip.MustParseAddr(a), domain.AliasAlly)
	}
	return r
}

func TestBuild(t *testing.T) {
	tr := tree.New()
	insert(t, tr, "10.0.0.0/24", "10.0.0.1")
	insert(t, tr, "10.1.0.0/24", "10.0.0.1", "10.0.0.254")
	insert(t, tr, "10.2.0.0/24", "10.0.0.1", "192.0.2.1")

	top := tr.NodesAtDepth(1)[0]
	top.SetRouters([]*domain.Router{router("10.0.0.1")})
	second := tr.NodesAtDepth(2)
	require.Len(t, second, 2)
	second[0].SetRouters([]*domain.Router{router("10.0.0.254"), router("10.9.9.9")})

	g := Build(tr)

	assert.Equal(t, 4, g.Count(VertexRouter))
	assert.Equal(t, 4, g.Count(VertexSubnet))
	assert.Equal(t, 1, g.Count(VertexSwitch))
	assert.Equal(t, []Link{
		{Kind: LinkRouterSubnet, From: "R1", To: "S1"},
		{Kind: LinkSwitchRouter, From: "E1", To: "R2"},
		{Kind: LinkSwitchRouter, From: "E1", To: "R3"},
		{Kind: LinkRouterSubnet, From: "R2", To: "S1"},
		{Kind: LinkRouterSubnet, From: "R2", To: "S2"},
		{Kind: LinkRouterSubnet, From: "R1", To: "S3"},
		{Kind: LinkRouterSubnet, From: "R4", To: "S3"},
		{Kind: LinkRouterSubnet, From: "R4", To: "S4"},
	}, g.Links)

	t.Run("imaginary vertices", func(t *testing.T) {
		for id, imaginary := range map[string]bool{
			"R1": false, "R2": false, "R3": false, "R4": true,
			"S1": false, "S2": false, "S3": true, "S4": false,
			"E1": true,
		} {
			v, ok := g.Vertex(id)
			require.True(t, ok, id)
			assert.Equal(t, imaginary, v.Imaginary, id)
		}
	})

	t.Run("neighbors", func(t *testing.T) {
		assert.Equal(t, []string{"S1", "S3"}, g.Neighbors("R1"))
		assert.Equal(t, []string{"E1", "S1", "S2"}, g.Neighbors("R2"))
	})

	t.Run("text", func(t *testing.T) {
		var sb strings.Builder
		require.NoError(t, g.WriteText(&sb))
		out := sb.String()
		assert.Contains(t, out, "R1 [inferred] 10.0.0.1 (FIRST_IP)\n")
		assert.Contains(t, out, "R4 [imaginary]\n")
		assert.Contains(t, out, "S2 [inferred] 10.1.0.0/24 (accurate)\n")
		assert.Contains(t, out, "E1 [imaginary]\n")
		assert.True(t, strings.HasSuffix(out, "R4 - S4\n"))
	})
}

func TestBuildFromRoot(t *testing.T) {
	tr := tree.New()
	insert(t, tr, "10.1.0.0/24", "10.0.0.1")
	insert(t, tr, "10.2.0.0/24", "10.0.0.2")
	insert(t, tr, "10.3.0.0/24", "*")

	g := Build(tr)
	assert.Equal(t, 3, g.Count(VertexRouter))
	assert.Equal(t, 5, g.Count(VertexSubnet))
	assert.Zero(t, g.Count(VertexSwitch))
	for _, v := range g.Vertices {
		if v.Kind == VertexRouter {
			assert.True(t, v.Imaginary, v.ID)
		}
	}

	vantage, ok := g.Vertex("R1")
	require.True(t, ok)
	assert.Zero(t, vantage.Depth)
	assert.Equal(t, []string{"S1", "S2", "S4"}, g.Neighbors("R1"))
	s1, _ := g.Vertex("S1")
	assert.Equal(t, "10.3.0.0/24", s1.Subnet.Prefix.String())
	for _, id := range []string{"S2", "S4"} {
		v, ok := g.Vertex(id)
		require.True(t, ok, id)
		assert.True(t, v.Imaginary, id)
		assert.Nil(t, v.Subnet, id)
	}

	t.Run("connected", func(t *testing.T) {
		seen := map[string]bool{"R1": true}
		queue := []string{"R1"}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, next := range g.Neighbors(id) {
				if !seen[next] {
					seen[next] = true
					queue = append(queue, next)
				}
			}
		}
		assert.Len(t, seen, len(g.Vertices))
	})
}

func TestBuildFromRootThroughRootSubnet(t *testing.T) {
	tr := tree.New()
	insert(t, tr, "10.0.0.0/24", "*")
	insert(t, tr, "10.1.0.0/24", "10.0.0.1")
	insert(t, tr, "10.2.0.0/24", "10.0.0.2")

	g := Build(tr)
	// both neighborhoods hang off 10.0.0.0/24, no imaginary subnet needed
	assert.Equal(t, 3, g.Count(VertexSubnet))
	assert.Equal(t, []string{"S1"}, g.Neighbors("R1"))
	assert.ElementsMatch(t, []string{"R1", "R2", "R3"}, g.Neighbors("S1"))
}

func TestBuildEmptyTree(t *testing.T) {
	g := Build(tree.New())
	assert.Empty(t, g.Vertices)
	assert.Empty(t, g.Links)
}
