package codec

import (
	"fmt"
	"net/netip"
	"time"

	"treenet/internal/domain"
)

// datasetRecord is the on-disk layout shared by the YAML and JSON codecs
type datasetRecord struct {
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	Subnets []subnetRecord `yaml:"subnets" json:"subnets"`
	Hints   []hintRecord   `yaml:"hints,omitempty" json:"hints,omitempty"`
}

type subnetRecord struct {
	Prefix     string            `yaml:"prefix" json:"prefix"`
	Status     string            `yaml:"status,omitempty" json:"status,omitempty"`
	Route      []string          `yaml:"route" json:"route"`
	Interfaces []interfaceRecord `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
}

type interfaceRecord struct {
	Addr string `yaml:"addr" json:"addr"`
	Hops int    `yaml:"hops" json:"hops"`
}

type hintRecord struct {
	Addr                  string         `yaml:"addr" json:"addr"`
	InitialTTL            uint8          `yaml:"initial_ttl,omitempty" json:"initial_ttl,omitempty"`
	HostName              string         `yaml:"host_name,omitempty" json:"host_name,omitempty"`
	TimestampCompliant    bool           `yaml:"timestamp_compliant,omitempty" json:"timestamp_compliant,omitempty"`
	PortUnreachableSource string         `yaml:"port_unreachable_source,omitempty" json:"port_unreachable_source,omitempty"`
	Samples               []sampleRecord `yaml:"samples,omitempty" json:"samples,omitempty"`
}

type sampleRecord struct {
	Token uint32 `yaml:"token" json:"token"`
	ID    uint16 `yaml:"id" json:"id"`
	Echo  bool   `yaml:"echo,omitempty" json:"echo,omitempty"`
	Delay string `yaml:"delay,omitempty" json:"delay,omitempty"`
}

func (r *datasetRecord) toDomain() (*domain.Dataset, error) {
	ds := &domain.Dataset{Name: r.Name}
	for i, sr := range r.Subnets {
		route, err := domain.ParseRoute(sr.Route)
		if err != nil {
			return nil, fmt.Errorf("subnet #%d: parse route: %w", i, err)
		}
		s, err := domain.NewSubnet(sr.Prefix, route, domain.ParseSubnetStatus(sr.Status))
		if err != nil {
			return nil, fmt.Errorf("subnet #%d: %w", i, err)
		}
		for _, ir := range sr.Interfaces {
			addr, err := netip.ParseAddr(ir.Addr)
			if err != nil {
				return nil, fmt.Errorf("subnet %s: parse interface: %w", s.Prefix, err)
			}
			s.AddInterface(addr, ir.Hops)
		}
		ds.Subnets = append(ds.Subnets, s)
	}

	for _, hr := range r.Hints {
		h, err := hr.toDomain()
		if err != nil {
			return nil, err
		}
		ds.Hints = append(ds.Hints, h)
	}
	return ds, nil
}

func (hr *hintRecord) toDomain() (*domain.Hint, error) {
	addr, err := netip.ParseAddr(hr.Addr)
	if err != nil {
		return nil, fmt.Errorf("hint: parse address: %w", err)
	}
	h := &domain.Hint{
		Addr:               addr,
		InitialTTL:         hr.InitialTTL,
		HostName:           hr.HostName,
		TimestampCompliant: hr.TimestampCompliant,
	}
	if hr.PortUnreachableSource != "" {
		if h.PortUnreachableSource, err = netip.ParseAddr(hr.PortUnreachableSource); err != nil {
			return nil, fmt.Errorf("hint %s: parse port unreachable source: %w", addr, err)
		}
	}
	for _, sr := range hr.Samples {
		sample := domain.IPIDSample{Token: sr.Token, ID: sr.ID, Echo: sr.Echo}
		if sr.Delay != "" {
			if sample.Delay, err = time.ParseDuration(sr.Delay); err != nil {
				return nil, fmt.Errorf("hint %s: parse delay: %w", addr, err)
			}
		}
		h.Samples = append(h.Samples, sample)
	}
	return h, nil
}

func fromDomain(ds *domain.Dataset) *datasetRecord {
	r := &datasetRecord{
		Name:    ds.Name,
		Subnets: make([]subnetRecord, 0, len(ds.Subnets)),
	}
	for _, s := range ds.Subnets {
		sr := subnetRecord{
			Prefix: s.Prefix.String(),
			Status: string(s.Status),
			Route:  s.Route.Strings(),
		}
		for _, i := range s.Interfaces {
			sr.Interfaces = append(sr.Interfaces, interfaceRecord{Addr: i.Addr.String(), Hops: i.Hops})
		}
		r.Subnets = append(r.Subnets, sr)
	}
	for _, h := range ds.Hints {
		hr := hintRecord{
			Addr:               h.Addr.String(),
			InitialTTL:         h.InitialTTL,
			HostName:           h.HostName,
			TimestampCompliant: h.TimestampCompliant,
		}
		if h.PortUnreachableSource.IsValid() {
			hr.PortUnreachableSource = h.PortUnreachableSource.String()
		}
		for _, s := range h.Samples {
			sr := sampleRecord{Token: s.Token, ID: s.ID, Echo: s.Echo}
			if s.Delay != 0 {
				sr.Delay = s.Delay.String()
			}
			hr.Samples = append(hr.Samples, sr)
		}
		r.Hints = append(r.Hints, hr)
	}
	return r
}
