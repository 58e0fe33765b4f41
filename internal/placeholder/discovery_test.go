package placeholder

import (
	"strings"
	"testing"

	"rag-pipeline-console/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryQueries(t *testing.T) {
	assert.Len(t, discoveryQueries("BGP", "all"), 5)
	withCert := discoveryQueries("BGP", "CCNP")
	assert.Len(t, withCert, maxDiscoveryQueries)
	assert.Equal(t, "BGP CCNP troubleshooting", withCert[7])
}

func TestDiscoveryStreamsStepsAndDocuments(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"document_discovery","data":{"topic":"BGP","certification_level":"all","max_documents":3,"sources":["cisco.com","ine.com"]}}`)

	notices := emitter.ofType(events.TypeDiscoveryStatus)
	require.Len(t, notices, 1)
	assert.Equal(t, "starting", notices[0]["status"])

	updates := emitter.ofType(events.TypeDiscoveryUpdate)
	// initialize, generate, search start, five queries, validate, download, completed
	require.Len(t, updates, 11)
	assert.Equal(t, "initialize", updates[0]["step"])
	assert.Equal(t, 46.0, updates[3]["progress"])
	assert.Contains(t, updates[7]["message"], "Searched 5/5 queries")

	last := updates[len(updates)-1]
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, 3.0, last["count"])
	docs := last["documents"].([]interface{})
	require.Len(t, docs, 3)
	prev := 2.0
	for _, d := range docs {
		doc := d.(map[string]interface{})
		assert.Contains(t, []string{"cisco.com", "ine.com"}, doc["source"])
		assert.Len(t, doc["id"], 8)
		assert.Equal(t, "pending", doc["downloadStatus"])
		rel := doc["relevance"].(float64)
		assert.GreaterOrEqual(t, rel, 0.85)
		assert.LessOrEqual(t, rel, prev)
		prev = rel
	}
}

func TestDiscoveryFallsBackToGenericDocuments(t *testing.T) {
	docs := siteDocuments("vlan cisco configuration guide", "cisco.com")
	require.Len(t, docs, 1)
	assert.True(t, strings.HasPrefix(docs[0].Title, "Vlan Cisco Configuration Guide"))
	assert.Equal(t, "https://cisco.com/vlan-cisco-configuration-guide-guide.pdf", docs[0].URL)
	assert.Equal(t, documentID(docs[0].URL), docs[0].ID)

	out := organize(append(docs, docs...), 4)
	assert.Len(t, out, 1)
}

func TestDiscoveryWithoutTopicFails(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"document_discovery","data":{"certification_level":"all"}}`)

	errs := emitter.ofType(events.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Discovery error: topic is required", errs[0]["message"])
	assert.Empty(t, emitter.ofType(events.TypeDiscoveryUpdate))
}

func TestStage1ReportsDiscoveredPDFs(t *testing.T) {
	svc, emitter := newTestService(t)
	handle(t, svc, `{"action":"pipeline_stage1","data":{"topic":"MPLS","config":{}}}`)

	updates := emitter.ofType(events.TypePipelineStage1Update)
	require.Len(t, updates, len(stage1Steps))
	assert.InDelta(t, 100.0/6, updates[0]["progress"], 0.001)
	assert.Equal(t, "running", updates[0]["status"])
	assert.Empty(t, updates[0]["discovered_pdfs"])

	last := updates[len(updates)-1]
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, 100.0, last["progress"])
	assert.Equal(t, float64(len(stage1PDFs)), last["documents_found"])
	assert.Len(t, last["discovered_pdfs"], len(stage1PDFs))
}
