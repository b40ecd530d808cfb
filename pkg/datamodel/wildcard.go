package datamodel

import "sort"

// sortedEndpoints returns node's endpoints sorted by ascending endpoint ID,
// matching the traversal order wildcard expansion must produce regardless
// of registration order.
func sortedEndpoints(node Node) []Endpoint {
	eps := append([]Endpoint(nil), node.GetEndpoints()...)
	sort.Slice(eps, func(i, j int) bool { return eps[i].ID() < eps[j].ID() })
	return eps
}

// sortedClusters returns ep's clusters sorted by ascending cluster ID.
func sortedClusters(ep Endpoint) []Cluster {
	cls := append([]Cluster(nil), ep.GetClusters()...)
	sort.Slice(cls, func(i, j int) bool { return cls[i].ID() < cls[j].ID() })
	return cls
}

// sortedAttributes returns cl's attribute entries sorted by ascending
// attribute ID.
func sortedAttributes(cl Cluster) []AttributeEntry {
	attrs := append([]AttributeEntry(nil), cl.AttributeList()...)
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].ID < attrs[j].ID })
	return attrs
}

// endpointsMatching returns the endpoints of node matching the (possibly
// wildcard) endpoint selector, in ascending ID order.
func endpointsMatching(node Node, endpoint *EndpointID) []Endpoint {
	if endpoint != nil {
		if ep := node.GetEndpoint(*endpoint); ep != nil {
			return []Endpoint{ep}
		}
		return nil
	}
	return sortedEndpoints(node)
}

// clustersMatching returns the clusters of ep matching the (possibly
// wildcard) cluster selector, in ascending ID order.
func clustersMatching(ep Endpoint, cluster *ClusterID) []Cluster {
	if cluster != nil {
		if cl := ep.GetCluster(*cluster); cl != nil {
			return []Cluster{cl}
		}
		return nil
	}
	return sortedClusters(ep)
}

// ExpandAttributePaths walks node in ascending endpoint/cluster/attribute
// order, expanding the (possibly wildcard) selectors into the concrete
// attribute paths a ReadRequest must visit.
//
// Only readable attributes are included: a wildcard read silently skips
// attributes it has no business reporting rather than surfacing a status
// for each one. A fully concrete path (all three selectors non-nil) that
// does not resolve to an existing, readable attribute yields no path at
// all here — the caller is responsible for distinguishing "wildcard, no
// match" (silently report nothing) from "concrete path, no match" (report
// an UnsupportedEndpoint/UnsupportedCluster/UnsupportedAttribute status).
func ExpandAttributePaths(node Node, endpoint *EndpointID, cluster *ClusterID, attribute *AttributeID) []ConcreteAttributePath {
	var out []ConcreteAttributePath
	for _, ep := range endpointsMatching(node, endpoint) {
		for _, cl := range clustersMatching(ep, cluster) {
			if attribute != nil {
				if entry := findAttribute(cl, *attribute); entry != nil && entry.IsReadable() {
					out = append(out, ConcreteAttributePath{Endpoint: ep.ID(), Cluster: cl.ID(), Attribute: *attribute})
				}
				continue
			}
			for _, entry := range sortedAttributes(cl) {
				if entry.IsReadable() {
					out = append(out, ConcreteAttributePath{Endpoint: ep.ID(), Cluster: cl.ID(), Attribute: entry.ID})
				}
			}
		}
	}
	return out
}

// findAttribute returns the attribute entry for id on cl, or nil if absent.
func findAttribute(cl Cluster, id AttributeID) *AttributeEntry {
	for _, entry := range cl.AttributeList() {
		if entry.ID == id {
			e := entry
			return &e
		}
	}
	return nil
}

// IsWildcardPath reports whether any of the endpoint/cluster/attribute
// selectors is absent (nil), i.e. the path must be expanded rather than
// addressed directly.
func IsWildcardPath(endpoint *EndpointID, cluster *ClusterID, attribute *AttributeID) bool {
	return endpoint == nil || cluster == nil || attribute == nil
}

// ExpandWriteEndpoints expands an endpoint-wildcard write request across
// node's endpoints for one concrete cluster/attribute pair. Writes may only
// wildcard the endpoint: cluster and attribute must already be concrete by
// the time this is called.
//
// Unlike read expansion, a cluster/endpoint that does not carry the target
// cluster is simply not included — the caller skips it silently, matching
// "errors on non-matching attributes are skipped" for the endpoint-wildcard
// write case.
func ExpandWriteEndpoints(node Node, cluster ClusterID, attribute AttributeID) []ConcreteAttributePath {
	var out []ConcreteAttributePath
	for _, ep := range sortedEndpoints(node) {
		cl := ep.GetCluster(cluster)
		if cl == nil {
			continue
		}
		if entry := findAttribute(cl, attribute); entry == nil || !entry.IsWritable() {
			continue
		}
		out = append(out, ConcreteAttributePath{Endpoint: ep.ID(), Cluster: cluster, Attribute: attribute})
	}
	return out
}

// ExpandCommandPaths expands an endpoint-wildcard invoke request across
// node's endpoints for one concrete cluster/command pair, in ascending
// endpoint order. Invoke may only wildcard the endpoint.
func ExpandCommandPaths(node Node, cluster ClusterID, command CommandID) []ConcreteCommandPath {
	var out []ConcreteCommandPath
	for _, ep := range sortedEndpoints(node) {
		cl := ep.GetCluster(cluster)
		if cl == nil {
			continue
		}
		out = append(out, ConcreteCommandPath{Endpoint: ep.ID(), Cluster: cluster, Command: command})
	}
	return out
}
