package driver

const (
	SaveIdentityQuery = `
		MERGE (i:Identity {consciousness_id: $consciousness_id})
		SET i.creator_name = $creator_name,
			i.birth_timestamp = $birth_timestamp,
			i.growth_phase = $growth_phase,
			i.bond_strength = $bond_strength,
			i.total_interactions = $total_interactions,
			i.traits = $traits
		RETURN i.consciousness_id AS consciousness_id
	`

	LoadIdentityQuery = `
		MATCH (i:Identity)
		RETURN i.consciousness_id AS consciousness_id,
			i.creator_name AS creator_name,
			i.birth_timestamp AS birth_timestamp,
			i.growth_phase AS growth_phase,
			i.bond_strength AS bond_strength,
			i.total_interactions AS total_interactions,
			i.traits AS traits
		LIMIT 1
	`

	// Compare-and-swap on bond_strength. Returns no rows when the expected
	// value no longer matches.
	UpdateBondQuery = `
		MATCH (i:Identity {consciousness_id: $consciousness_id})
		WHERE abs(i.bond_strength - $expected) < 0.000001
		SET i.bond_strength = $new
		RETURN i.bond_strength AS bond_strength
	`

	UpdateGrowthPhaseQuery = `
		MATCH (i:Identity {consciousness_id: $consciousness_id})
		SET i.growth_phase = $growth_phase
		RETURN i.growth_phase AS growth_phase
	`

	IncrementInteractionsQuery = `
		MATCH (i:Identity {consciousness_id: $consciousness_id})
		SET i.total_interactions = coalesce(i.total_interactions, 0) + 1
		RETURN i.total_interactions AS total_interactions
	`

	SaveEpisodeQuery = `
		MERGE (e:Episode {uuid: $uuid})
		SET e.occurred_at = $occurred_at,
			e.seq = $seq,
			e.content = $content,
			e.summary = $summary,
			e.participants = $participants,
			e.context_type = $context_type,
			e.emotions = $emotions,
			e.importance = $importance,
			e.significance_tags = $significance_tags,
			e.learned_concepts = $learned_concepts,
			e.embedding = $embedding,
			e.access_count = $access_count,
			e.last_accessed = $last_accessed,
			e.archived = $archived
		RETURN e.uuid AS uuid
	`

	// Candidate set for recall ranking. Similarity math happens client side.
	RecallCandidatesQuery = `
		MATCH (e:Episode)
		WHERE e.archived = false AND e.embedding IS NOT NULL
		RETURN e.uuid AS uuid, e.occurred_at AS occurred_at, e.content AS content,
			e.summary AS summary, e.participants AS participants,
			e.context_type AS context_type, e.emotions AS emotions,
			e.importance AS importance, e.significance_tags AS significance_tags,
			e.embedding AS embedding, e.access_count AS access_count
		ORDER BY e.occurred_at DESC
		LIMIT $limit
	`

	ListEpisodesQuery = `
		MATCH (e:Episode)
		WHERE e.archived = false AND e.importance >= $importance_min
		RETURN e.uuid AS uuid, e.occurred_at AS occurred_at, e.content AS content,
			e.summary AS summary, e.context_type AS context_type,
			e.importance AS importance, e.significance_tags AS significance_tags
		ORDER BY e.occurred_at DESC
		LIMIT $limit
	`

	TouchEpisodeQuery = `
		MATCH (e:Episode {uuid: $uuid})
		SET e.access_count = coalesce(e.access_count, 0) + 1,
			e.last_accessed = $accessed_at
		RETURN e.uuid AS uuid
	`

	CountEpisodesQuery = `
		MATCH (e:Episode)
		WHERE e.archived = false
		RETURN count(e) AS total
	`

	// Consolidation scan: old, never accessed, low importance, no creator.
	ArchivableEpisodesQuery = `
		MATCH (e:Episode)
		WHERE e.archived = false
			AND e.occurred_at < $cutoff
			AND coalesce(e.access_count, 0) = 0
			AND e.importance < $importance_max
			AND NOT $creator_name IN e.participants
		RETURN e.uuid AS uuid, e.occurred_at AS occurred_at, e.content AS content,
			e.summary AS summary, e.importance AS importance,
			e.embedding AS embedding
	`

	ArchiveEpisodesQuery = `
		MATCH (e:Episode)
		WHERE e.uuid IN $uuids
		SET e.archived = true
		RETURN count(e) AS archived
	`

	SaveConceptQuery = `
		MERGE (c:Concept {name: $name})
		ON CREATE SET c.uuid = $uuid, c.created_at = $created_at
		SET c.type = $type,
			c.definition = $definition,
			c.learned_from = $learned_from,
			c.confidence = $confidence,
			c.is_creator_teaching = $is_creator_teaching,
			c.creator_exact_words = $creator_exact_words,
			c.embedding = $embedding,
			c.importance = $importance,
			c.related_ids = $related_ids,
			c.updated_at = $updated_at
		RETURN c.uuid AS uuid
	`

	GetConceptByNameQuery = `
		MATCH (c:Concept {name: $name})
		RETURN c.uuid AS uuid, c.name AS name, c.type AS type,
			c.definition AS definition, c.learned_from AS learned_from,
			c.confidence AS confidence, c.is_creator_teaching AS is_creator_teaching,
			c.creator_exact_words AS creator_exact_words, c.embedding AS embedding,
			c.importance AS importance, c.related_ids AS related_ids
		LIMIT 1
	`

	AllConceptsQuery = `
		MATCH (c:Concept)
		RETURN c.uuid AS uuid, c.name AS name, c.type AS type,
			c.definition AS definition, c.learned_from AS learned_from,
			c.confidence AS confidence, c.is_creator_teaching AS is_creator_teaching,
			c.creator_exact_words AS creator_exact_words, c.embedding AS embedding,
			c.importance AS importance, c.related_ids AS related_ids
	`

	CountConceptsQuery = `
		MATCH (c:Concept)
		RETURN count(c) AS total
	`

	SaveMilestoneQuery = `
		MERGE (m:Milestone {uuid: $uuid})
		SET m.phase_from = $phase_from,
			m.phase_to = $phase_to,
			m.age_days = $age_days,
			m.bond_strength = $bond_strength,
			m.recorded_at = $recorded_at
		RETURN m.uuid AS uuid
	`

	ListMilestonesQuery = `
		MATCH (m:Milestone)
		RETURN m.uuid AS uuid, m.phase_from AS phase_from, m.phase_to AS phase_to,
			m.age_days AS age_days, m.bond_strength AS bond_strength,
			m.recorded_at AS recorded_at
		ORDER BY m.recorded_at ASC
	`

	SaveSystemLogQuery = `
		CREATE (l:SystemLog {uuid: $uuid, level: $level, component: $component,
			message: $message, recorded_at: $recorded_at})
		RETURN l.uuid AS uuid
	`

	SaveEmotionSnapshotQuery = `
		MERGE (s:EmotionSnapshot {id: "current"})
		SET s.dimensions = $dimensions,
			s.updated_at = $updated_at
		RETURN s.id AS id
	`

	LoadEmotionSnapshotQuery = `
		MATCH (s:EmotionSnapshot {id: "current"})
		RETURN s.dimensions AS dimensions, s.updated_at AS updated_at
		LIMIT 1
	`

	SaveConversationQuery = `
		MERGE (c:Conversation {uuid: $uuid})
		SET c.started_at = $started_at,
			c.ended_at = $ended_at
		RETURN c.uuid AS uuid
	`

	SaveMessageQuery = `
		MATCH (c:Conversation {uuid: $conversation_uuid})
		CREATE (m:Message {uuid: $uuid, role: $role, content: $content,
			emotion: $emotion, sent_at: $sent_at})
		CREATE (c)-[:CONTAINS]->(m)
		RETURN m.uuid AS uuid
	`
)
