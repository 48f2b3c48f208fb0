package model

import "strconv"

// DisplayRow is a PortRecord joined with its process and, when one is
// published on the same (protocol, host port), a container mapping.
type DisplayRow struct {
	PortRecord
	Process string `json:"process,omitempty"`

	ContainerID   string `json:"containerId,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
	Image         string `json:"image,omitempty"`
	ContainerPort int    `json:"containerPort,omitempty"`
	// ExtraMappings counts mappings sharing the key besides the primary one.
	ExtraMappings int `json:"extraMappings,omitempty"`
}

func (r DisplayRow) IsFree() bool {
	return r.State == StateFree
}

func (r DisplayRow) HasContainer() bool {
	return r.ContainerID != "" || r.ContainerName != ""
}

// ContainerLabel is the container name with a "(+N)" suffix when several
// containers publish the same host port.
func (r DisplayRow) ContainerLabel() string {
	if r.ExtraMappings > 0 {
		return r.ContainerName + " (+" + strconv.Itoa(r.ExtraMappings) + ")"
	}
	return r.ContainerName
}

// View selects which rows a join produces.
type View struct {
	From       int        `json:"from"`
	To         int        `json:"to"`
	Protocols  []Protocol `json:"protocols"`
	OnlyUsed   bool       `json:"onlyUsed"`
	OnlyDocker bool       `json:"onlyDocker"`
}

// Normalize swaps a reversed range and clamps it to valid port numbers.
func (v View) Normalize() View {
	if v.From > v.To {
		v.From, v.To = v.To, v.From
	}
	if v.From < 0 {
		v.From = 0
	}
	if v.To > 65535 {
		v.To = 65535
	}
	if len(v.Protocols) == 0 {
		v.Protocols = []Protocol{TCP, UDP}
	}
	return v
}

func (v View) Contains(port int) bool {
	return port >= v.From && port <= v.To
}

func (v View) Wants(p Protocol) bool {
	if len(v.Protocols) == 0 {
		return true
	}
	for _, want := range v.Protocols {
		if want == p {
			return true
		}
	}
	return false
}

// ActionResult reports the outcome of a terminate/stop/restart request.
type ActionResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
